package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/config"
	"github.com/collectivehq/funding-flow/internal/domain/expense"
	httpserver "github.com/collectivehq/funding-flow/internal/interfaces/http"
	"github.com/collectivehq/funding-flow/internal/ocr"
	"github.com/collectivehq/funding-flow/internal/payment"
	"github.com/collectivehq/funding-flow/internal/report"
	"github.com/collectivehq/funding-flow/internal/repository"
	"github.com/collectivehq/funding-flow/internal/service"
	"github.com/collectivehq/funding-flow/internal/storage"
	"github.com/collectivehq/funding-flow/internal/worker"
	"github.com/collectivehq/funding-flow/pkg/database"
	"github.com/collectivehq/funding-flow/pkg/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting funding flow service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// repositories
	orderRepo := repository.NewOrderRepository(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)

	// external clients
	processor := payment.NewClient(payment.Config{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
		Timeout: cfg.Payment.Timeout,
	}, logger)
	parser := ocr.NewParser(cfg.OCR.APIKey, cfg.OCR.Model, cfg.OCR.Temperature, logger)

	// services
	uploadStore := storage.NewLocalUploadStore(cfg.Storage.UploadDir, logger)
	contributions := service.NewContributionService(orderRepo, processor, logger)

	// the expense service and parse worker reference each other: the
	// worker is the queue the service enqueues into, and the service
	// receives the worker's results
	applier := &resultApplier{}
	parseWorker := worker.NewParseWorker(parser, applier, cfg.OCR.QueueSize, logger)
	expenses := service.NewExpenseService(expenseRepo, uploadStore, parseWorker, logger)
	applier.svc = expenses

	exporter := report.NewExporter(cfg.Report.OutputDir, logger)

	manager := worker.NewManager(logger)
	manager.Register(parseWorker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	handlers := httpserver.NewHandlers(contributions, expenses, exporter, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	cancel()
	manager.StopAll()
	logger.Info("Server exited")
}

// resultApplier forwards parse results to the expense service once it
// exists; the worker is constructed first
type resultApplier struct {
	svc *service.ExpenseService
}

func (a *resultApplier) ApplyParseResults(draftID, batchID string, results []expense.UploadResult, replaceIndex int) error {
	return a.svc.ApplyParseResults(draftID, batchID, results, replaceIndex)
}
