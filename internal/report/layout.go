package report

import (
	"fmt"

	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

// Column labels shared by all report tables.
const (
	LabelWafer  = "Wafer"
	LabelBin    = "Bin"
	LabelSubBin = "Sub_Bin"
	LabelTotal  = "Total"
	LabelMean   = "Mean - Reading_1"
	LabelMax    = "Max - Reading_2"
)

// leadingBlankRows precede the title row of every table.
const leadingBlankRows = 2

// TableSpec names one table of a report profile.
type TableSpec struct {
	Kind  models.ReportKind
	Name  string
	Title string
}

// Write lays out a computed result and writes it to the sink under the
// generated form of spec.Name.
func Write(sink Sink, spec TableSpec, catalog *yield.Catalog, res yield.Result) error {
	if spec.Kind != res.Kind {
		return fmt.Errorf("table %s expects %s rows, got %s", spec.Name, spec.Kind, res.Kind)
	}
	table, err := sink.BeginTable(GeneratedName(spec.Name))
	if err != nil {
		return fmt.Errorf("failed to begin table %s: %w", spec.Name, err)
	}

	switch {
	case spec.Kind.IsCount() && spec.Kind.IsSubBin():
		err = writeSubBinCounts(table, spec.Title, catalog.SubBinLUT(), res.Counts)
	case spec.Kind.IsCount():
		err = writeBinCounts(table, spec.Title, catalog.BinLUT(), res.Counts)
	default:
		err = writeStats(table, spec.Kind.IsSubBin(), res.Stats)
	}
	if err != nil {
		return fmt.Errorf("failed to write table %s: %w", spec.Name, err)
	}
	return nil
}

func writeBlankRows(t Table) error {
	for range leadingBlankRows {
		if err := t.AppendRow(); err != nil {
			return err
		}
	}
	return nil
}

func writeBinCounts(t Table, title string, lut yield.BinLUT, rows []models.CountRow) error {
	if err := writeBlankRows(t); err != nil {
		return err
	}
	if err := t.AppendRow(title, LabelBin); err != nil {
		return err
	}
	if err := t.AppendRow(CountHeader(lut.Names)...); err != nil {
		return err
	}
	return writeCountRows(t, rows)
}

func writeSubBinCounts(t Table, title string, lut yield.SubBinLUT, rows []models.CountRow) error {
	if err := writeBlankRows(t); err != nil {
		return err
	}
	if err := t.AppendRow(title, LabelBin, LabelSubBin); err != nil {
		return err
	}
	if err := t.AppendRow(GroupRow(lut)...); err != nil {
		return err
	}
	if err := t.AppendRow(CountHeader(lut.Names)...); err != nil {
		return err
	}
	return writeCountRows(t, rows)
}

// GroupRow labels each run of sub-bin columns with its parent bin. The label
// sits above the first sub-bin column of the group.
func GroupRow(lut yield.SubBinLUT) []any {
	if len(lut.Bins) == 0 {
		return nil
	}
	row := make([]any, len(lut.Names)+1)
	for i, bin := range lut.Bins {
		row[lut.Offsets[i]+1] = bin
	}
	return row
}

// CountHeader returns the header row of a count table.
func CountHeader(names []int) []any {
	header := make([]any, 0, len(names)+2)
	header = append(header, LabelWafer)
	for _, n := range names {
		header = append(header, n)
	}
	return append(header, LabelTotal)
}

func writeCountRows(t Table, rows []models.CountRow) error {
	for _, row := range rows {
		if err := t.AppendRow(row.Cells()...); err != nil {
			return err
		}
	}
	return nil
}

// StatsHeader returns the header row of a statistics table.
func StatsHeader(subBin bool) []any {
	if subBin {
		return []any{LabelWafer, LabelBin, LabelSubBin, LabelMean, LabelMax}
	}
	return []any{LabelWafer, LabelBin, LabelMean, LabelMax}
}

func writeStats(t Table, subBin bool, rows []models.StatsRow) error {
	if err := writeBlankRows(t); err != nil {
		return err
	}
	if err := t.AppendRow(StatsHeader(subBin)...); err != nil {
		return err
	}
	for _, row := range rows {
		if err := t.AppendRow(row.Cells()...); err != nil {
			return err
		}
	}
	return nil
}
