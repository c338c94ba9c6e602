package yield

import (
	"errors"
	"fmt"

	"github.com/j-veylop/wafer-yield/internal/models"
)

// Aggregator computes the report tables of a completed Index.
// All methods are read-only and may run concurrently.
type Aggregator struct {
	index   *Index
	catalog *Catalog
	policy  ZeroTotalPolicy
}

// NewAggregator creates an aggregator over a fully ingested index.
func NewAggregator(ix *Index, policy ZeroTotalPolicy) *Aggregator {
	return &Aggregator{
		index:   ix,
		catalog: ix.Catalog(),
		policy:  policy,
	}
}

// Catalog returns the catalog the aggregator lays out columns with.
func (a *Aggregator) Catalog() *Catalog {
	return a.catalog
}

// Result is one computed report.
type Result struct {
	Kind   models.ReportKind
	Counts []models.CountRow
	Stats  []models.StatsRow
}

// Len returns the number of data rows in the result.
func (r Result) Len() int {
	if r.Kind.IsCount() {
		return len(r.Counts)
	}
	return len(r.Stats)
}

// Compute runs the aggregation for a report kind.
func (a *Aggregator) Compute(kind models.ReportKind) (Result, error) {
	res := Result{Kind: kind}
	var err error
	switch kind {
	case models.ReportBinCount, models.ReportBinPercent:
		res.Counts, err = a.CountByBin(kind.IsPercent())
	case models.ReportSubBinCount, models.ReportSubBinPercent:
		res.Counts, err = a.CountBySubBin(kind.IsPercent())
	case models.ReportBinStats:
		res.Stats = a.StatsByBin()
	case models.ReportSubBinStats:
		res.Stats = a.StatsBySubBin()
	default:
		err = fmt.Errorf("unknown report kind %d", kind)
	}
	return res, err
}

// CountByBin returns one row per wafer with the die count of every catalog
// bin followed by the wafer total.
func (a *Aggregator) CountByBin(asPercentage bool) ([]models.CountRow, error) {
	lut := a.catalog.BinLUT()
	rows := make([]models.CountRow, 0, a.index.WaferCount())

	for _, wafer := range a.index.Wafers() {
		counts := make([]int, len(lut.Names))
		for bin, subBins := range a.index.wafers[wafer] {
			col, ok := lut.Index[bin]
			if !ok {
				continue
			}
			for _, records := range subBins {
				counts[col] += len(records)
			}
		}

		row, keep, err := a.countRow(wafer, counts, asPercentage)
		if err != nil {
			return nil, err
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// CountBySubBin returns one row per wafer with the die count of every
// flattened sub-bin column followed by the wafer total.
func (a *Aggregator) CountBySubBin(asPercentage bool) ([]models.CountRow, error) {
	lut := a.catalog.SubBinLUT()
	rows := make([]models.CountRow, 0, a.index.WaferCount())

	for _, wafer := range a.index.Wafers() {
		counts := make([]int, len(lut.Names))
		for bin, subBins := range a.index.wafers[wafer] {
			for subBin, records := range subBins {
				col, ok := lut.Index[models.SubBinKey{Bin: bin, SubBin: subBin}]
				if !ok {
					continue
				}
				counts[col] = len(records)
			}
		}

		row, keep, err := a.countRow(wafer, counts, asPercentage)
		if err != nil {
			return nil, err
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (a *Aggregator) countRow(wafer string, counts []int, asPercentage bool) (models.CountRow, bool, error) {
	total := 0
	for _, c := range counts {
		total += c
	}
	row := models.CountRow{Wafer: wafer, Counts: counts, Total: total}
	if !asPercentage {
		return row, true, nil
	}

	cells, err := PercentCells(counts, total, a.policy)
	switch {
	case errors.Is(err, ErrZeroTotal) && a.policy == ZeroTotalOmit:
		return row, false, nil
	case err != nil:
		return row, false, fmt.Errorf("wafer %s: %w", wafer, err)
	}
	row.Percentages = cells
	return row, true, nil
}

// StatsByBin returns reading statistics for every (wafer, catalog bin) pair
// that has records. Pairs without records produce no row.
func (a *Aggregator) StatsByBin() []models.StatsRow {
	var rows []models.StatsRow
	bins := a.catalog.Bins()

	for _, wafer := range a.index.Wafers() {
		for _, bin := range bins {
			records, ok := a.index.binRecords(wafer, bin)
			if !ok {
				continue
			}
			row, ok := summarize(records)
			if !ok {
				continue
			}
			row.Wafer, row.Bin = wafer, bin
			rows = append(rows, row)
		}
	}
	return rows
}

// StatsBySubBin returns reading statistics for every (wafer, bin, sub-bin)
// group present in the index.
func (a *Aggregator) StatsBySubBin() []models.StatsRow {
	var rows []models.StatsRow

	for _, wafer := range a.index.Wafers() {
		for _, bin := range a.index.Bins(wafer) {
			for _, subBin := range a.index.SubBins(wafer, bin) {
				row, ok := summarize(a.index.Records(wafer, bin, subBin))
				if !ok {
					continue
				}
				row.Wafer, row.Bin, row.SubBin, row.HasSubBin = wafer, bin, subBin, true
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// summarize returns the count, mean of Reading1 and max of Reading2.
// ok is false for an empty group.
func summarize(records []models.DieRecord) (row models.StatsRow, ok bool) {
	if len(records) == 0 {
		return row, false
	}
	sum := 0.0
	row.Max = records[0].Reading2
	for _, r := range records {
		sum += r.Reading1
		if r.Reading2 > row.Max {
			row.Max = r.Reading2
		}
	}
	row.Count = len(records)
	row.Mean = sum / float64(len(records))
	return row, true
}
