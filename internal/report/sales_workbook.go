// Package report renders the sales report as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"inventoflow/internal/analytics"
)

const (
	SalesSheet   = "Sales"
	SummarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var salesHeader = []interface{}{"Date", "Product", "Category", "Quantity", "Price per item", "Total"}

// WriteSalesWorkbook writes one row per sale plus a summary sheet to w.
func WriteSalesWorkbook(w io.Writer, sales []analytics.EnrichedSale) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SalesSheet, "A1", &salesHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, s := range sales {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			s.Date.Date(),
			s.ItemName,
			s.Category,
			s.QuantitySold,
			s.PricePerItem.InexactFloat64(),
			s.Total.InexactFloat64(),
		}
		if err := f.SetSheetRow(SalesSheet, cell, &row); err != nil {
			return fmt.Errorf("write sale row %d: %w", i+2, err)
		}
	}

	if err := writeSummary(f, sales); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, sales []analytics.EnrichedSale) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	totals := analytics.Totals(sales)
	rows := [][]interface{}{
		{"Total revenue", totals.Revenue.InexactFloat64()},
		{"Units sold", totals.UnitsSold},
		{"Transactions", totals.Transactions},
		{},
		{"Category", "Revenue", "Share"},
	}
	for _, c := range analytics.RevenueByCategory(sales) {
		rows = append(rows, []interface{}{c.Name, c.Revenue.InexactFloat64(), c.Share})
	}

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}
