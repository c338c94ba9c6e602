package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// utf8BOM is written by spreadsheet exports in front of the first header.
const utf8BOM = "\ufeff"

// CSVSource reads a comma-separated file whose first record is the header.
type CSVSource struct {
	Path string
}

// ReadRows reads the whole file.
func (s *CSVSource) ReadRows(ctx context.Context) ([]string, [][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no header row", ErrSchemaViolation, s.Path)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header, records[1:], nil
}
