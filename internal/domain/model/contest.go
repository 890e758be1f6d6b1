// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TrendDirection is the upstream hint about how a contest moved the rating.
type TrendDirection string

// Known trend directions. Anything else decodes to TrendNone.
const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendNone TrendDirection = "NONE"
)

// UnmarshalJSON tolerates unknown or null directions.
func (t *TrendDirection) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*t = TrendNone
		return nil
	}
	switch d := TrendDirection(strings.ToUpper(strings.TrimSpace(*s))); d {
	case TrendUp, TrendDown:
		*t = d
	default:
		*t = TrendNone
	}
	return nil
}

// Contest identifies a single contest instance.
type Contest struct {
	Title     string `json:"title"`
	StartTime int64  `json:"startTime"` // unix seconds
}

// Start returns the contest start as a UTC time.
func (c Contest) Start() time.Time {
	return time.Unix(c.StartTime, 0).UTC()
}

// ContestRecord is one participation row as returned by the ranking service.
// Field names mirror the upstream GraphQL schema.
type ContestRecord struct {
	Attended            bool           `json:"attended"`
	Rating              float64        `json:"rating"`
	Ranking             int            `json:"ranking"`
	ProblemsSolved      int            `json:"problemsSolved"`
	TotalProblems       int            `json:"totalProblems"`
	FinishTimeInSeconds int            `json:"finishTimeInSeconds"`
	TrendDirection      TrendDirection `json:"trendDirection"`
	Contest             Contest        `json:"contest"`
}

// EnrichedEntry is a ContestRecord with the rating held before the contest
// and the resulting delta.
type EnrichedEntry struct {
	ContestRecord
	PrevRating   float64 `json:"prevRating"`
	RatingChange float64 `json:"ratingChange"`
}

// Improved reports whether the contest did not lower the rating.
func (e EnrichedEntry) Improved() bool {
	return e.RatingChange >= 0
}
