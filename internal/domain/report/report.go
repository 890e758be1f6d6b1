// Package report assembles the enriched history and its summary for one handle.
package report

import (
	"time"

	"github.com/okian/contestlens/internal/domain/history"
	"github.com/okian/contestlens/internal/domain/model"
	"github.com/okian/contestlens/internal/domain/summary"
)

// Report is everything the dashboard shows for a handle.
type Report struct {
	Handle    string                `json:"handle"`
	Summary   summary.Summary       `json:"summary"`
	Entries   []model.EnrichedEntry `json:"entries"`
	Baseline  float64               `json:"baseline"`
	FetchedAt time.Time             `json:"fetchedAt"`
}

// Build runs the transformation pipeline and the aggregator over raw records.
func Build(handle string, records []model.ContestRecord, baseline float64, maxProblems int, fetchedAt time.Time) Report {
	entries := history.Transform(records, baseline)
	return Report{
		Handle:    handle,
		Summary:   summary.Summarize(entries, baseline, summary.WithMaxProblems(maxProblems)),
		Entries:   entries,
		Baseline:  baseline,
		FetchedAt: fetchedAt,
	}
}

// Empty reports whether the handle has no attended contests.
func (r Report) Empty() bool {
	return len(r.Entries) == 0
}
