package infra

import (
	"fmt"
	"io"

	"catalogsync/internal/model"

	"github.com/xuri/excelize/v2"
)

const productsSheet = "Products"

var productColumns = []string{
	"Stock code", "SKU", "Barcode", "Name", "Description", "Price",
	"Stock", "Origin", "Length", "Width", "Size", "Last modified", "Last synced",
}

// WriteProductsXLSX writes the catalog as a single-sheet workbook to w.
func WriteProductsXLSX(w io.Writer, products []model.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", productsSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := make([]interface{}, len(productColumns))
	for i, c := range productColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(productsSheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(productColumns))
	if err := f.SetCellStyle(productsSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			p.StockCode, p.SKU, p.Barcode, p.Name, p.Description, p.Price.StringFixed(2),
			p.StockLevel, deref(p.Origin), decimalCell(p.Length), decimalCell(p.Width), p.Size,
			timeCell(p.LastModified), timeCell(p.LastSyncedAt),
		}
		if err := f.SetSheetRow(productsSheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(productsSheet, "A", "C", 16)
	_ = f.SetColWidth(productsSheet, "D", "E", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}
