package services

import (
	"time"

	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/report"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

// TableResult is one computed profile table.
type TableResult struct {
	Spec   report.TableSpec
	Result yield.Result
}

// Snapshot is the outcome of one Generate call.
type Snapshot struct {
	InputPath   string
	Records     int
	Wafers      []string
	Catalog     *yield.Catalog
	Tables      []TableResult
	Aggregator  *yield.Aggregator
	GeneratedAt time.Time
	Duration    time.Duration
}

// Result returns the rows of a report kind. Kinds the profile did not
// include are computed on demand.
func (s *Snapshot) Result(kind models.ReportKind) (yield.Result, error) {
	for _, t := range s.Tables {
		if t.Spec.Kind == kind {
			return t.Result, nil
		}
	}
	return s.Aggregator.Compute(kind)
}
