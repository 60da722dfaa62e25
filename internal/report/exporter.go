package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/models"
)

// Exporter writes orders and expense drafts to Excel workbooks for the
// collective's admins
type Exporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExporter creates an exporter writing into outputDir
func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{outputDir: outputDir, logger: logger}
}

var orderHeaders = []string{
	"Order ID", "Transaction ID", "Payer", "Email", "Guest",
	"Amount", "Platform Tip", "Tax", "Total", "Currency",
	"Quantity", "Interval", "Created At",
}

// ExportOrders writes all orders to a timestamped workbook and returns its
// path
func (e *Exporter) ExportOrders(orders []*models.Order) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Orders"
	f.SetSheetName("Sheet1", sheet)

	for col, h := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		e.setCell(f, sheet, cell, h)
	}

	for row, order := range orders {
		values := []interface{}{
			order.OrderID,
			order.TransactionID,
			order.PayerName,
			order.PayerEmail,
			order.IsGuest,
			centsToDecimal(order.AmountCents),
			centsToDecimal(order.PlatformTipCents),
			centsToDecimal(order.TaxCents),
			centsToDecimal(order.TotalCents),
			order.Currency,
			order.Quantity,
			order.Interval,
			order.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			e.setCell(f, sheet, cell, v)
		}
	}

	return e.save(f, fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102_150405")))
}

var draftHeaders = []string{
	"Draft ID", "Status", "Type", "Currency", "Description",
	"Items", "Items Total", "Attached Files", "Updated At",
}

// ExportDrafts writes all expense drafts to a timestamped workbook and
// returns its path
func (e *Exporter) ExportDrafts(drafts []*models.ExpenseDraft) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Expense Drafts"
	f.SetSheetName("Sheet1", sheet)

	for col, h := range draftHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		e.setCell(f, sheet, cell, h)
	}

	for row, draft := range drafts {
		var totalCents int64
		for _, item := range draft.Form.Items {
			if item.AmountCents != nil {
				totalCents += *item.AmountCents
			}
		}
		values := []interface{}{
			draft.DraftID,
			draft.Status,
			string(draft.Form.Type),
			draft.Form.Currency,
			draft.Form.Description,
			len(draft.Form.Items),
			centsToDecimal(totalCents),
			len(draft.Form.AttachedFiles),
			draft.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			e.setCell(f, sheet, cell, v)
		}
	}

	return e.save(f, fmt.Sprintf("expense_drafts_%s.xlsx", time.Now().Format("20060102_150405")))
}

func (e *Exporter) save(f *excelize.File, filename string) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(e.outputDir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	e.logger.Info("Report exported", zap.String("path", path))
	return path, nil
}

func (e *Exporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// centsToDecimal renders integer cents as a major-unit decimal for the
// spreadsheet
func centsToDecimal(cents int64) float64 {
	return float64(cents) / 100
}
