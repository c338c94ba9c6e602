// Package models defines data structures and domain types.
package models

import "fmt"

// DieRecord is a single die test result as read from the raw data sheet.
type DieRecord struct {
	Wafer    string
	Bin      int
	SubBin   int
	Reading1 float64
	Reading2 float64
}

// String returns a compact representation of the record, used in logs.
func (d DieRecord) String() string {
	return fmt.Sprintf("Die(%s, %d, %d, %g, %g)", d.Wafer, d.Bin, d.SubBin, d.Reading1, d.Reading2)
}

// SubBinKey identifies a sub-bin inside its parent bin.
type SubBinKey struct {
	Bin    int
	SubBin int
}
