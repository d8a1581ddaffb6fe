package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// maxSheetName is the sheet title limit of the xlsx format.
const maxSheetName = 31

// WriteWorkbook saves tables as sheets of a new xlsx workbook at path.
func WriteWorkbook(path string, tables ...Table) error {
	const op = "WriteWorkbook"

	if len(tables) == 0 {
		return fmt.Errorf("%s: no tables to write", op)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create header style: %w", op, err)
	}

	for i, t := range tables {
		name := sheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("%s: failed to rename sheet to %s: %w", op, name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("%s: failed to add sheet %s: %w", op, name, err)
		}

		header := make([]interface{}, len(t.Headers))
		for j, h := range t.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("%s: failed to write header of %s: %w", op, name, err)
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return fmt.Errorf("%s: failed to style header of %s: %w", op, name, err)
		}

		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("%s: failed to write row %d of %s: %w", op, r+2, name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: failed to save %s: %w", op, path, err)
	}
	return nil
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
