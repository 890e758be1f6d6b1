// Package summary computes headline statistics over an enriched contest history.
package summary

import (
	"github.com/okian/contestlens/internal/domain/model"
)

// DefaultMaxProblems is the usual number of problems in a contest.
const DefaultMaxProblems = 4

// Summary holds the dashboard headline numbers.
type Summary struct {
	CurrentRating float64 `json:"currentRating"`
	PeakRating    float64 `json:"peakRating"`
	TotalContests int     `json:"totalContests"`
	LatestChange  float64 `json:"latestChange"`
	// SolveHistogram counts contests by problems solved. Index n holds the
	// number of contests with exactly n problems solved.
	SolveHistogram []int `json:"solveHistogram"`
}

// MaxProblems returns the highest solved-count bucket in the histogram.
func (s Summary) MaxProblems() int {
	return len(s.SolveHistogram) - 1
}

// Option applies a configuration option to Summarize.
type Option func(*options)

type options struct {
	maxProblems int
}

// WithMaxProblems sets the upper bound of the solve histogram. Values below
// zero are ignored.
func WithMaxProblems(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxProblems = n
		}
	}
}

// Summarize aggregates entries, which must be most recent first. An empty
// history yields baseline ratings and an all-zero histogram.
func Summarize(entries []model.EnrichedEntry, baseline float64, opts ...Option) Summary {
	o := options{maxProblems: DefaultMaxProblems}
	for _, opt := range opts {
		opt(&o)
	}

	s := Summary{
		CurrentRating:  baseline,
		PeakRating:     baseline,
		TotalContests:  len(entries),
		SolveHistogram: make([]int, o.maxProblems+1),
	}
	if len(entries) == 0 {
		return s
	}

	s.CurrentRating = entries[0].Rating
	s.LatestChange = entries[0].RatingChange
	s.PeakRating = entries[0].Rating
	for _, e := range entries {
		if e.Rating > s.PeakRating {
			s.PeakRating = e.Rating
		}
		// Out-of-range counts are not an error, just not charted.
		if e.ProblemsSolved >= 0 && e.ProblemsSolved <= o.maxProblems {
			s.SolveHistogram[e.ProblemsSolved]++
		}
	}
	return s
}
