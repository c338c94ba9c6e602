package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/wafer-yield/internal/ui/styles"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 24
	// cellPadding is the horizontal padding bubbles adds around every cell.
	cellPadding = 2
)

// NewReportTable creates a focused table styled like the rest of the viewer.
func NewReportTable(height int) table.Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(max(height, 1)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgAccent).
		Bold(true)
	t.SetStyles(s)

	return t
}

// FitColumns sizes one column per header title to the widest of the title and
// its cells.
func FitColumns(header []string, rows [][]string) []table.Column {
	cols := make([]table.Column, len(header))
	for i, title := range header {
		w := ansi.StringWidth(title)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, ansi.StringWidth(row[i]))
			}
		}
		cols[i] = table.Column{Title: title, Width: min(max(w, minColumnWidth), maxColumnWidth)}
	}
	return cols
}

// SetTableData replaces the columns and rows of t. Rows are cleared first so
// the table never renders old rows against new columns.
func SetTableData(t *table.Model, header []string, rows [][]string) {
	t.SetRows(nil)
	t.SetColumns(FitColumns(header, rows))

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		row := make(table.Row, len(header))
		copy(row, r)
		tableRows[i] = row
	}
	t.SetRows(tableRows)
	if t.Cursor() >= len(tableRows) {
		t.SetCursor(max(len(tableRows)-1, 0))
	}
}

// Span is a label covering consecutive table columns.
type Span struct {
	Label string
	Start int
	Size  int
}

// RenderSpanRow renders labels aligned above the given columns, each label
// left-aligned over the first column of its span.
func RenderSpanRow(cols []table.Column, spans []Span) string {
	offsets := make([]int, len(cols)+1)
	for i, c := range cols {
		offsets[i+1] = offsets[i] + c.Width + cellPadding
	}

	var b strings.Builder
	for _, sp := range spans {
		if sp.Start < 0 || sp.Start >= len(cols) || sp.Size <= 0 {
			continue
		}
		end := min(sp.Start+sp.Size, len(cols))
		if pad := offsets[sp.Start] - ansi.StringWidth(b.String()); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		width := offsets[end] - offsets[sp.Start] - 1
		label := ansi.Truncate(sp.Label, width, "…")
		b.WriteString(" " + label)
	}
	return styles.GroupHeaderStyle.Render(b.String())
}
