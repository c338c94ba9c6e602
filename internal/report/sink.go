// Package report lays out computed yield reports as rows and writes them to
// named tables of a Sink.
package report

import (
	"strconv"
	"strings"
)

// Marker is appended to every generated table name so that generated
// tables can be told apart from source tables.
const Marker = "*"

// Sink persists named tables of rows.
type Sink interface {
	// BeginTable starts a table. An existing table of the same name is
	// cleared first.
	BeginTable(name string) (Table, error)
	// Close flushes everything written so far.
	Close() error
	// Abort releases the sink without keeping what was written through
	// it. Output from earlier runs stays as it was.
	Abort() error
}

// Table receives the rows of one table in order.
type Table interface {
	// AppendRow writes the next row. An empty call writes a blank row.
	AppendRow(values ...any) error
}

// GeneratedName returns the table name used for a report base name.
func GeneratedName(base string) string {
	return base + Marker
}

// IsGeneratedName reports whether a table name carries the generated marker.
func IsGeneratedName(name string) bool {
	return strings.HasSuffix(name, Marker)
}

// FormatCell renders a cell value as text for text-based sinks.
func FormatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// FormatRow renders every cell of a row with FormatCell.
func FormatRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatCell(v)
	}
	return out
}
