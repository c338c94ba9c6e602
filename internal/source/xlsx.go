package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads a worksheet of a workbook. An empty Sheet reads the
// first worksheet.
type XLSXSource struct {
	Path  string
	Sheet string
}

// ReadRows reads every row of the sheet. Numeric cells are returned
// unformatted so readings keep their full precision.
func (s *XLSXSource) ReadRows(ctx context.Context) ([]string, [][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("workbook %s has no worksheets", s.Path)
		}
		sheet = sheets[0]
	}

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, nil, err
	}
	if idx == -1 {
		return nil, nil, fmt.Errorf("sheet %q not found in %s", sheet, s.Path)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet %q is empty", ErrSchemaViolation, sheet)
	}
	return rows[0], rows[1:], nil
}
