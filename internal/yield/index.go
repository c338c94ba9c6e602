// Package yield implements the in-memory wafer/bin/sub-bin index and the
// report aggregations computed from it.
package yield

import (
	"maps"
	"slices"

	"github.com/j-veylop/wafer-yield/internal/models"
)

type (
	subBinGroups map[int][]models.DieRecord
	binGroups    map[int]subBinGroups
)

// Index groups die records by wafer, bin and sub-bin. It also tracks which
// sub-bins have been seen under each bin, across all wafers.
//
// An Index is built by a single goroutine and is safe for concurrent reads
// once ingestion is finished.
type Index struct {
	wafers    map[string]binGroups
	hierarchy map[int]map[int]struct{}
	records   int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		wafers:    make(map[string]binGroups),
		hierarchy: make(map[int]map[int]struct{}),
	}
}

// Ingest adds a record, creating missing wafer, bin and sub-bin levels.
// Duplicate records are kept.
func (ix *Index) Ingest(rec models.DieRecord) {
	bins := ix.waferBins(rec.Wafer)
	subBins := bins.subBins(rec.Bin)
	subBins[rec.SubBin] = append(subBins[rec.SubBin], rec)

	known, ok := ix.hierarchy[rec.Bin]
	if !ok {
		known = make(map[int]struct{})
		ix.hierarchy[rec.Bin] = known
	}
	known[rec.SubBin] = struct{}{}

	ix.records++
}

func (ix *Index) waferBins(wafer string) binGroups {
	bins, ok := ix.wafers[wafer]
	if !ok {
		bins = make(binGroups)
		ix.wafers[wafer] = bins
	}
	return bins
}

func (b binGroups) subBins(bin int) subBinGroups {
	subBins, ok := b[bin]
	if !ok {
		subBins = make(subBinGroups)
		b[bin] = subBins
	}
	return subBins
}

// Len returns the number of ingested records.
func (ix *Index) Len() int {
	return ix.records
}

// WaferCount returns the number of distinct wafers.
func (ix *Index) WaferCount() int {
	return len(ix.wafers)
}

// Wafers returns the wafer ids in sorted order.
func (ix *Index) Wafers() []string {
	return slices.Sorted(maps.Keys(ix.wafers))
}

// Bins returns the bins present for a wafer in sorted order.
func (ix *Index) Bins(wafer string) []int {
	return slices.Sorted(maps.Keys(ix.wafers[wafer]))
}

// SubBins returns the sub-bins present for a wafer and bin in sorted order.
func (ix *Index) SubBins(wafer string, bin int) []int {
	return slices.Sorted(maps.Keys(ix.wafers[wafer][bin]))
}

// Records returns the records stored under a (wafer, bin, sub-bin) triple.
// The returned slice must not be modified.
func (ix *Index) Records(wafer string, bin, subBin int) []models.DieRecord {
	return ix.wafers[wafer][bin][subBin]
}

// binRecords flattens every sub-bin of a wafer's bin. ok is false when the
// wafer has no entry for the bin.
func (ix *Index) binRecords(wafer string, bin int) (records []models.DieRecord, ok bool) {
	subBins, ok := ix.wafers[wafer][bin]
	if !ok {
		return nil, false
	}
	for _, sb := range slices.Sorted(maps.Keys(subBins)) {
		records = append(records, subBins[sb]...)
	}
	return records, true
}

// Catalog returns the bin catalog derived from everything ingested so far.
func (ix *Index) Catalog() *Catalog {
	return newCatalog(ix.hierarchy)
}
