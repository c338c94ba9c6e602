// Package source reads raw die records from workbooks, CSV files and the
// sqlite store.
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

// Header is the exact column layout every source must present.
var Header = []string{"Wafer", "Bin", "Sub_Bin", "Reading_1", "Reading_2"}

var (
	// ErrSchemaViolation is returned when the header row does not match Header.
	ErrSchemaViolation = errors.New("input header does not match die record schema")
	// ErrInvalidRecord is returned when a data row cannot be decoded.
	ErrInvalidRecord = errors.New("invalid die record")
	// ErrUnsupportedInput is returned by Open for unknown file types.
	ErrUnsupportedInput = errors.New("unsupported input file type")
)

// Source yields the header and data rows of a raw data table as text.
type Source interface {
	ReadRows(ctx context.Context) (header []string, rows [][]string, err error)
}

// Open picks a source implementation from the file extension.
func Open(path, sheet string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &CSVSource{Path: path}, nil
	case ".xlsx", ".xlsm":
		return &XLSXSource{Path: path, Sheet: sheet}, nil
	case ".db", ".sqlite", ".sqlite3":
		return &SQLiteSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
	}
}

// Decode checks the header and calls fn for every non-blank data row.
// Row numbers in errors count the header as row 1.
func Decode(header []string, rows [][]string, fn func(models.DieRecord) error) error {
	if !slices.Equal(header, Header) {
		return fmt.Errorf("%w: got %q, want %q", ErrSchemaViolation, header, Header)
	}

	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		rec, err := decodeRow(row)
		if err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrInvalidRecord, i+2, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func decodeRow(row []string) (models.DieRecord, error) {
	if len(row) < len(Header) {
		return models.DieRecord{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	var (
		rec models.DieRecord
		err error
	)
	rec.Wafer = strings.TrimSpace(row[0])
	if rec.Wafer == "" {
		return rec, errors.New("column Wafer is empty")
	}
	if rec.Bin, err = parseInt(row[1]); err != nil {
		return rec, fmt.Errorf("column Bin: %w", err)
	}
	if rec.SubBin, err = parseInt(row[2]); err != nil {
		return rec, fmt.Errorf("column Sub_Bin: %w", err)
	}
	if rec.Reading1, err = parseReading(row[3]); err != nil {
		return rec, fmt.Errorf("column Reading_1: %w", err)
	}
	if rec.Reading2, err = parseReading(row[4]); err != nil {
		return rec, fmt.Errorf("column Reading_2: %w", err)
	}
	return rec, nil
}

// parseReading rejects NaN and infinities, which would poison every mean
// and max of their group.
func parseReading(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

// parseInt accepts integral floats such as "3.0", which spreadsheets emit
// for numeric cells.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// ReadAll decodes every record of a source.
func ReadAll(ctx context.Context, src Source) ([]models.DieRecord, error) {
	header, rows, err := src.ReadRows(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.DieRecord, 0, len(rows))
	err = Decode(header, rows, func(rec models.DieRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Load ingests every record of a source into the index and returns how many
// records were ingested.
func Load(ctx context.Context, src Source, ix *yield.Index) (int, error) {
	header, rows, err := src.ReadRows(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	err = Decode(header, rows, func(rec models.DieRecord) error {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ix.Ingest(rec)
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	logger.Debug("loaded die records", "records", n, "wafers", ix.WaferCount())
	return n, nil
}
