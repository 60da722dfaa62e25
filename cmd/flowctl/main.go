// flowctl is the operations CLI: it runs database migrations and exports
// admin reports without going through the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/config"
	"github.com/collectivehq/funding-flow/internal/report"
	"github.com/collectivehq/funding-flow/internal/repository"
	"github.com/collectivehq/funding-flow/pkg/database"
	"github.com/collectivehq/funding-flow/pkg/utils"
)

var configPath string

func main() {
	_ = gotenv.Load()

	root := &cobra.Command{
		Use:          "flowctl",
		Short:        "Operations CLI for the funding flow service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	root.AddCommand(migrateCmd(), exportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export admin reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "orders",
		Short: "Export all orders to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			orders, err := repository.NewOrderRepository(db.DB, logger).List()
			if err != nil {
				return err
			}
			path, err := report.NewExporter(cfg.Report.OutputDir, logger).ExportOrders(orders)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "expenses",
		Short: "Export all expense drafts to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			drafts, err := repository.NewExpenseRepository(db.DB, logger).List()
			if err != nil {
				return err
			}
			path, err := report.NewExporter(cfg.Report.OutputDir, logger).ExportDrafts(drafts)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	return cmd
}

func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func openDB(cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	return database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
}
