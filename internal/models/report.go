package models

// ReportKind identifies one of the generated report tables.
type ReportKind int

const (
	// ReportBinCount counts dies per wafer and bin.
	ReportBinCount ReportKind = iota
	// ReportBinPercent is ReportBinCount expressed as percentages of the wafer total.
	ReportBinPercent
	// ReportSubBinCount counts dies per wafer and sub-bin.
	ReportSubBinCount
	// ReportSubBinPercent is ReportSubBinCount expressed as percentages.
	ReportSubBinPercent
	// ReportBinStats holds reading statistics per wafer and bin.
	ReportBinStats
	// ReportSubBinStats holds reading statistics per wafer, bin and sub-bin.
	ReportSubBinStats
)

var reportKindNames = map[ReportKind]string{
	ReportBinCount:      "bin_count",
	ReportBinPercent:    "bin_percent",
	ReportSubBinCount:   "subbin_count",
	ReportSubBinPercent: "subbin_percent",
	ReportBinStats:      "bin_stats",
	ReportSubBinStats:   "subbin_stats",
}

// String returns the profile name of the report kind.
func (k ReportKind) String() string {
	if name, ok := reportKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseReportKind maps a profile name back to its ReportKind.
func ParseReportKind(name string) (ReportKind, bool) {
	for k, n := range reportKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// IsCount reports whether the kind is one of the count/percentage tables.
func (k ReportKind) IsCount() bool {
	return k == ReportBinCount || k == ReportBinPercent ||
		k == ReportSubBinCount || k == ReportSubBinPercent
}

// IsPercent reports whether the kind renders counts as percentages.
func (k ReportKind) IsPercent() bool {
	return k == ReportBinPercent || k == ReportSubBinPercent
}

// IsSubBin reports whether the kind is computed at sub-bin granularity.
func (k ReportKind) IsSubBin() bool {
	return k == ReportSubBinCount || k == ReportSubBinPercent || k == ReportSubBinStats
}

// CountRow is one wafer row of a count report.
// Counts is indexed by the LUT column of the report; Percentages, when set,
// holds the rendered percentage of every count followed by the total.
type CountRow struct {
	Wafer       string
	Counts      []int
	Total       int
	Percentages []string
}

// Cells returns the row as it is written to a report table.
func (r CountRow) Cells() []any {
	cells := make([]any, 0, len(r.Counts)+2)
	cells = append(cells, r.Wafer)
	if r.Percentages != nil {
		for _, p := range r.Percentages {
			cells = append(cells, p)
		}
		return cells
	}
	for _, c := range r.Counts {
		cells = append(cells, c)
	}
	return append(cells, r.Total)
}

// StatsRow is one non-empty group of a statistics report.
type StatsRow struct {
	Wafer     string
	Bin       int
	SubBin    int
	HasSubBin bool
	Count     int
	Mean      float64
	Max       float64
}

// Cells returns the row as it is written to a report table.
func (r StatsRow) Cells() []any {
	if r.HasSubBin {
		return []any{r.Wafer, r.Bin, r.SubBin, r.Mean, r.Max}
	}
	return []any{r.Wafer, r.Bin, r.Mean, r.Max}
}
