package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/report"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportSink writes report tables into the database inside one transaction.
// Nothing is visible to readers until Close commits.
type ReportSink struct {
	db  *DB
	ctx context.Context
	tx  *sql.Tx
	err error
}

// NewReportSink starts a transaction for writing report tables.
func (db *DB) NewReportSink(ctx context.Context) (*ReportSink, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &ReportSink{db: db, ctx: ctx, tx: tx}, nil
}

// BeginTable registers the table and deletes its previous rows.
func (s *ReportSink) BeginTable(name string) (report.Table, error) {
	if s.tx == nil {
		return nil, errors.New("report sink is closed")
	}

	_, err := s.tx.ExecContext(s.ctx, `
		INSERT INTO report_tables (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, name)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to register table %s: %w", name, err))
	}
	res, err := s.tx.ExecContext(s.ctx, "DELETE FROM report_rows WHERE table_name = ?", name)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to clear table %s: %w", name, err))
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Debug("cleared existing report table", "table", name, "rows", n)
	}
	return &dbTable{sink: s, name: name}, nil
}

// Close commits the written tables. A failed write rolls everything back.
func (s *ReportSink) Close() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if s.err != nil {
		_ = tx.Rollback()
		return s.err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report tables: %w", err)
	}
	return nil
}

// Abort rolls back every table written through the sink.
func (s *ReportSink) Abort() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back report tables: %w", err)
	}
	return nil
}

func (s *ReportSink) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

type dbTable struct {
	sink *ReportSink
	name string
	row  int
}

func (t *dbTable) AppendRow(values ...any) error {
	if t.sink.tx == nil {
		return errors.New("report sink is closed")
	}
	if values == nil {
		values = []any{}
	}
	cells, err := json.Marshal(values)
	if err != nil {
		return t.sink.fail(fmt.Errorf("failed to encode row %d of %s: %w", t.row, t.name, err))
	}
	if _, err := t.sink.tx.ExecContext(t.sink.ctx, sqlInsertReportRow, t.name, t.row, string(cells)); err != nil {
		return t.sink.fail(fmt.Errorf("failed to insert row %d of %s: %w", t.row, t.name, err))
	}
	t.row++
	return nil
}

// ReportTableNames returns stored report tables in the order they were
// first written.
func (db *DB) ReportTableNames(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM report_tables ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query report tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan report table: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReportRows returns the rows of a stored report table. Numbers decode as
// float64 and blank rows as nil.
func (db *DB) ReportRows(ctx context.Context, name string) ([][]any, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT cells FROM report_rows WHERE table_name = ? ORDER BY row_index", name)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var out [][]any
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}
		var row []any
		if err := json.UnmarshalFromString(cells, &row); err != nil {
			return nil, fmt.Errorf("failed to decode row of %s: %w", name, err)
		}
		if len(row) == 0 {
			row = nil
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
