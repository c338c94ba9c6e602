package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/models"
)

// ReplaceDieRecords replaces the stored die records in one transaction.
func (db *DB) ReplaceDieRecords(ctx context.Context, records []models.DieRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM die_records"); err != nil {
		return fmt.Errorf("failed to clear die records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sqlInsertDieRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Wafer, r.Bin, r.SubBin, r.Reading1, r.Reading2); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit die records: %w", err)
	}
	logger.Debug("stored die records", "count", len(records), "db", db.path)
	return nil
}

// CountDieRecords returns the number of stored die records.
func (db *DB) CountDieRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM die_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count die records: %w", err)
	}
	return n, nil
}

// RawRows returns every column of a table as text, in insertion order,
// together with the column names.
func (db *DB) RawRows(ctx context.Context, table string) ([]string, [][]string, error) {
	exists, err := db.tableExists(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("table %s not found in %s", table, db.path)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q ORDER BY rowid", table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = v.String
		}
		out = append(out, record)
	}

	return header, out, rows.Err()
}

func (db *DB) tableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return true, nil
}
