package source

import (
	"context"
	"fmt"
	"os"

	"github.com/j-veylop/wafer-yield/internal/db"
)

// SQLiteSource reads die records from a table of a sqlite database,
// die_records unless Table is set.
type SQLiteSource struct {
	Path  string
	Table string
}

// ReadRows reads every row of the table using its column names as header.
func (s *SQLiteSource) ReadRows(ctx context.Context) ([]string, [][]string, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}

	store, err := db.New(s.Path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	table := s.Table
	if table == "" {
		table = db.DieRecordsTable
	}
	return store.RawRows(ctx, table)
}
