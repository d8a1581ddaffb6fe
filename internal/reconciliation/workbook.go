package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook serves ReadRange from a local xlsx file. Only the sheet part of
// the range is honored; every row of the sheet is returned.
type Workbook struct {
	path string
}

// NewWorkbook returns a reader for the xlsx file at path.
func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

// ReadRange returns every row of the sheet named in rangeSpec.
func (w *Workbook) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "Workbook.ReadRange"

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, w.path, err)
	}
	defer f.Close()

	sheet := rangeSpec
	if i := strings.LastIndex(rangeSpec, "!"); i >= 0 {
		sheet = rangeSpec[:i]
	}
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %s: %w", op, sheet, err)
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return values, nil
}
