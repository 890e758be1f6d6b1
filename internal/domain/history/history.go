// Package history turns raw contest participation rows into an ordered,
// enriched rating history.
package history

import (
	"slices"

	"github.com/okian/contestlens/internal/domain/model"
)

// DefaultBaseline is the rating assumed before a user's first contest.
const DefaultBaseline = 1500.0

// Transform filters records to attended contests, derives the rating held
// before each contest from its chronological predecessor and returns the
// result most recent first.
//
// The first chronological entry starts from baseline. Records sharing a start
// time keep their upstream order. The input slice is not modified.
func Transform(records []model.ContestRecord, baseline float64) []model.EnrichedEntry {
	attended := make([]model.ContestRecord, 0, len(records))
	for _, r := range records {
		if r.Attended {
			attended = append(attended, r)
		}
	}

	slices.SortStableFunc(attended, func(a, b model.ContestRecord) int {
		switch {
		case a.Contest.StartTime < b.Contest.StartTime:
			return -1
		case a.Contest.StartTime > b.Contest.StartTime:
			return 1
		default:
			return 0
		}
	})

	entries := make([]model.EnrichedEntry, len(attended))
	prev := baseline
	for i, r := range attended {
		entries[i] = model.EnrichedEntry{
			ContestRecord: r,
			PrevRating:    prev,
			RatingChange:  r.Rating - prev,
		}
		prev = r.Rating
	}

	// Deltas are derived above; only now flip to display order.
	slices.Reverse(entries)
	return entries
}

// Chronological returns a copy of entries ordered oldest first. Entries are
// expected in the descending order produced by Transform.
func Chronological(entries []model.EnrichedEntry) []model.EnrichedEntry {
	out := slices.Clone(entries)
	slices.Reverse(out)
	return out
}
