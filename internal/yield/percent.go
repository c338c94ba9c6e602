package yield

import (
	"errors"
	"fmt"
	"strings"
)

// ErrZeroTotal is returned when percentages are requested for a wafer row
// whose total count is zero and the policy does not allow a fallback.
var ErrZeroTotal = errors.New("percentage of zero total")

// ZeroTotalPolicy decides what a percentage row looks like when the wafer
// total is zero.
type ZeroTotalPolicy int

const (
	// ZeroTotalFill renders every column as 0.00%.
	ZeroTotalFill ZeroTotalPolicy = iota
	// ZeroTotalOmit drops the wafer row.
	ZeroTotalOmit
	// ZeroTotalError fails the report with ErrZeroTotal.
	ZeroTotalError
)

// String returns the configuration name of the policy.
func (p ZeroTotalPolicy) String() string {
	switch p {
	case ZeroTotalFill:
		return "zero"
	case ZeroTotalOmit:
		return "omit"
	case ZeroTotalError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseZeroTotalPolicy parses "zero", "omit" or "error".
func ParseZeroTotalPolicy(s string) (ZeroTotalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return ZeroTotalFill, nil
	case "omit":
		return ZeroTotalOmit, nil
	case "error":
		return ZeroTotalError, nil
	}
	return 0, fmt.Errorf("unknown zero-total policy %q (want zero, omit or error)", s)
}

// FormatPercent renders part/total as a percentage with two decimals.
func FormatPercent(part, total int) string {
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}

// PercentCells converts a count vector and its total into percentage cells,
// total column included. A zero total yields all-zero cells under
// ZeroTotalFill and ErrZeroTotal otherwise.
func PercentCells(counts []int, total int, policy ZeroTotalPolicy) ([]string, error) {
	cells := make([]string, 0, len(counts)+1)
	if total == 0 {
		if policy != ZeroTotalFill {
			return nil, ErrZeroTotal
		}
		for range len(counts) + 1 {
			cells = append(cells, "0.00%")
		}
		return cells, nil
	}
	for _, c := range counts {
		cells = append(cells, FormatPercent(c, total))
	}
	return append(cells, FormatPercent(total, total)), nil
}
