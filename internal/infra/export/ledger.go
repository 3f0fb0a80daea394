// Package export renders accounting data as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"github.com/xuri/excelize/v2"
)

// LedgerSheet is the worksheet the ledger is written to.
const LedgerSheet = "Ledger"

// LedgerHeader lists the ledger columns in order.
var LedgerHeader = []string{
	"Order ID",
	"Store",
	"Created",
	"Customer",
	"Status",
	"View",
	"Subtotal",
	"Tax Rate %",
	"Tax",
	"Total Due",
	"Expenses",
	"Net Profit",
}

var ledgerWidths = []float64{38, 14, 22, 24, 12, 10, 14, 10, 12, 14, 12, 14}

// LedgerXLSX writes entries as one row each, followed by a totals row.
func LedgerXLSX(entries []domain.LedgerEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(LedgerSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("total style: %w", err)
	}

	if err := f.SetSheetRow(LedgerSheet, "A1", &LedgerHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(LedgerHeader))
	if err := f.SetCellStyle(LedgerSheet, "A1", last+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range ledgerWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(LedgerSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	var subtotal, tax, due, expenses, profit float64
	for i, e := range entries {
		row := []any{
			e.OrderID, e.StoreID, e.CreatedAt, e.CustomerName, e.Status, string(e.View),
			e.Subtotal, e.TaxRate, e.TaxAmount, e.TotalDue, e.TotalExpenses, nil,
		}
		if e.NetProfit != nil {
			row[11] = *e.NetProfit
			profit += *e.NetProfit
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(LedgerSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		subtotal += e.Subtotal
		tax += e.TaxAmount
		due += e.TotalDue
		expenses += e.TotalExpenses
	}

	totalRow := len(entries) + 2
	totals := []any{"Total", nil, nil, nil, nil, nil, subtotal, nil, tax, due, expenses, profit}
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetSheetRow(LedgerSheet, cell, &totals); err != nil {
		return nil, fmt.Errorf("write totals: %w", err)
	}

	if len(entries) > 0 {
		if err := f.SetCellStyle(LedgerSheet, "G2", fmt.Sprintf("L%d", totalRow-1), money); err != nil {
			return nil, fmt.Errorf("style rows: %w", err)
		}
	}
	if err := f.SetCellStyle(LedgerSheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("L%d", totalRow), totalStyle); err != nil {
		return nil, fmt.Errorf("style totals: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
