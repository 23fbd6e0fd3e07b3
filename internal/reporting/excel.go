package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ibs-bot/internal/decision"
	"ibs-bot/pkg/types"
)

// ExcelReporter exports signal and candle history as a workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header int
	date   int
}

// WriteHistoryXLSX writes signals and candles into one workbook at path,
// creating the parent directory if needed.
func (r *ExcelReporter) WriteHistoryXLSX(signals []*types.Signal, candles []*types.Candle, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const signalsSheet = "Signals"
	const candlesSheet = "Candles"

	fx.SetSheetName(fx.GetSheetName(0), signalsSheet)
	if _, err := fx.NewSheet(candlesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSignalsSheet(fx, signalsSheet, signals, styles); err != nil {
		return err
	}
	if err := r.writeCandlesSheet(fx, candlesSheet, candles, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F5496"},
			Pattern: 1,
		},
	})
	if err != nil {
		return styles, fmt.Errorf("failed to create header style: %w", err)
	}

	dateFormat := "yyyy-mm-dd hh:mm"
	styles.date, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
	if err != nil {
		return styles, fmt.Errorf("failed to create date style: %w", err)
	}

	return styles, nil
}

func (r *ExcelReporter) writeSignalsSheet(fx *excelize.File, sheet string, signals []*types.Signal, styles excelStyles) error {
	headers := []interface{}{"ID", "Timestamp", "Action", "Side", "Price", "Leverage", "Status", "Created At"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, styles.header); err != nil {
		return err
	}

	for i, sig := range signals {
		row := []interface{}{
			sig.ID,
			sig.Timestamp,
			string(sig.Action),
			string(sig.Side),
			sig.Price,
			sig.Leverage,
			sig.Status.String(),
			sig.CreatedAt,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(signals) > 0 {
		if err := fx.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", len(signals)+1), styles.date); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, "H2", fmt.Sprintf("H%d", len(signals)+1), styles.date); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "B", "B", 18)
}

func (r *ExcelReporter) writeCandlesSheet(fx *excelize.File, sheet string, candles []*types.Candle, styles excelStyles) error {
	headers := []interface{}{"ID", "Window End", "Open", "High", "Low", "Close", "Volume", "IBS"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := fx.SetRowStyle(sheet, 1, 1, styles.header); err != nil {
		return err
	}

	for i, c := range candles {
		row := []interface{}{
			c.ID,
			c.Timestamp,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			decision.IBS(c),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(candles) > 0 {
		if err := fx.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", len(candles)+1), styles.date); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "B", "B", 18)
}
