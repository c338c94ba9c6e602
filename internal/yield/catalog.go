package yield

import (
	"maps"
	"slices"

	"github.com/j-veylop/wafer-yield/internal/models"
)

// BinLUT maps bins to report columns.
type BinLUT struct {
	Names []int
	Index map[int]int
}

// SubBinLUT maps sub-bins to flattened report columns. Sub-bins are grouped by
// bin; Offsets[i] is the first flattened column of Bins[i].
type SubBinLUT struct {
	Names   []int
	Index   map[models.SubBinKey]int
	Bins    []int
	Offsets []int
}

// GroupSize returns the number of sub-bin columns of the i-th bin group.
func (l SubBinLUT) GroupSize(i int) int {
	if i+1 < len(l.Offsets) {
		return l.Offsets[i+1] - l.Offsets[i]
	}
	return len(l.Names) - l.Offsets[i]
}

// Catalog holds the sorted bin and sub-bin enumeration of an Index.
type Catalog struct {
	bins    []int
	subBins map[int][]int
}

func newCatalog(hierarchy map[int]map[int]struct{}) *Catalog {
	c := &Catalog{
		bins:    slices.Sorted(maps.Keys(hierarchy)),
		subBins: make(map[int][]int, len(hierarchy)),
	}
	for bin, set := range hierarchy {
		c.subBins[bin] = slices.Sorted(maps.Keys(set))
	}
	return c
}

// Bins returns the catalog bins in sorted order.
func (c *Catalog) Bins() []int {
	return slices.Clone(c.bins)
}

// SubBins returns the sorted sub-bins seen under a bin on any wafer.
func (c *Catalog) SubBins(bin int) []int {
	return slices.Clone(c.subBins[bin])
}

// BinLUT returns the sorted bin names and their column positions.
func (c *Catalog) BinLUT() BinLUT {
	lut := BinLUT{
		Names: slices.Clone(c.bins),
		Index: make(map[int]int, len(c.bins)),
	}
	for i, bin := range lut.Names {
		lut.Index[bin] = i
	}
	return lut
}

// SubBinLUT returns the flattened, bin-grouped sub-bin enumeration.
//
// The same sub-bin code under two bins produces two columns. Index is keyed
// by (bin, sub-bin) so such columns never collide.
func (c *Catalog) SubBinLUT() SubBinLUT {
	lut := SubBinLUT{
		Index:   make(map[models.SubBinKey]int),
		Bins:    make([]int, 0, len(c.bins)),
		Offsets: make([]int, 0, len(c.bins)),
	}
	for _, bin := range c.bins {
		lut.Bins = append(lut.Bins, bin)
		lut.Offsets = append(lut.Offsets, len(lut.Names))
		for _, sb := range c.subBins[bin] {
			lut.Index[models.SubBinKey{Bin: bin, SubBin: sb}] = len(lut.Names)
			lut.Names = append(lut.Names, sb)
		}
	}
	return lut
}
