package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet transactions are written to.
const SheetName = "Transactions"

func writeXLSX(out io.Writer, records []FormattedRecord, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	cols := Columns(opts)
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write XLSX header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style XLSX header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rec.values()
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write XLSX row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}
