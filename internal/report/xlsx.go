package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/j-veylop/wafer-yield/internal/logger"
)

// maxSheetNameLen is Excel's limit on worksheet names.
const maxSheetNameLen = 31

// sheetNameReplacer maps characters Excel forbids in worksheet names,
// the generated-table marker included.
var sheetNameReplacer = strings.NewReplacer(
	":", "#", `\`, "#", "/", "#", "?", "#", "*", "#", "[", "#", "]", "#",
)

// SheetName returns the worksheet name used for a table name.
func SheetName(name string) string {
	s := sheetNameReplacer.Replace(name)
	if r := []rune(s); len(r) > maxSheetNameLen {
		s = string(r[:maxSheetNameLen])
	}
	return s
}

// XLSXSink writes tables as worksheets of a workbook.
type XLSXSink struct {
	file        *excelize.File
	path        string
	placeholder string
}

// NewXLSXSink creates a workbook sink saved to path. When seed is not
// empty, the workbook at seed is opened and its sheets are kept, so that
// reports land next to the raw data they were computed from.
func NewXLSXSink(path, seed string) (*XLSXSink, error) {
	s := &XLSXSink{path: path}
	if seed != "" {
		f, err := excelize.OpenFile(seed)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", seed, err)
		}
		s.file = f
		return s, nil
	}

	s.file = excelize.NewFile()
	s.placeholder = s.file.GetSheetName(0)
	return s, nil
}

// BeginTable creates the worksheet or clears an existing one.
func (s *XLSXSink) BeginTable(name string) (Table, error) {
	sheet := SheetName(name)
	idx, err := s.file.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}

	if idx == -1 {
		if _, err := s.file.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	} else if err := s.clearSheet(sheet); err != nil {
		return nil, err
	}

	if sheet == s.placeholder {
		s.placeholder = ""
	}
	return &xlsxTable{file: s.file, sheet: sheet}, nil
}

func (s *XLSXSink) clearSheet(sheet string) error {
	rows, err := s.file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	for r := len(rows); r >= 1; r-- {
		if err := s.file.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
		}
	}
	logger.Debug("cleared existing sheet", "sheet", sheet, "rows", len(rows))
	return nil
}

// Close drops the unused default sheet of a new workbook and saves it.
func (s *XLSXSink) Close() error {
	defer func() { _ = s.file.Close() }()

	if s.placeholder != "" && s.file.SheetCount > 1 {
		if err := s.file.DeleteSheet(s.placeholder); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", s.path, err)
	}
	return nil
}

// Abort closes the workbook without saving, so an existing file at the
// output path keeps its previous content.
func (s *XLSXSink) Abort() error {
	return s.file.Close()
}

type xlsxTable struct {
	file  *excelize.File
	sheet string
	row   int
}

func (t *xlsxTable) AppendRow(values ...any) error {
	t.row++
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, t.row)
	if err != nil {
		return err
	}
	return t.file.SetSheetRow(t.sheet, cell, &values)
}
