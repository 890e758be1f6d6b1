package render

import (
	"fmt"

	"github.com/okian/contestlens/internal/domain/model"
	"github.com/okian/contestlens/internal/domain/session"
)

// Direction marks whether a rating change went up or down.
type Direction string

// Directions used by rows and the latest change card.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Cards are the headline numbers, rounded for display.
type Cards struct {
	CurrentRating   int       `json:"currentRating"`
	PeakRating      int       `json:"peakRating"`
	TotalContests   int       `json:"totalContests"`
	LatestChange    int       `json:"latestChange"`
	LatestDirection Direction `json:"latestDirection"`
}

// Bucket is one cell of the performance distribution.
type Bucket struct {
	Solved int    `json:"solved"`
	Count  int    `json:"count"`
	Label  string `json:"label"`
}

// Row is one formatted contest.
type Row struct {
	Contest   string    `json:"contest"`
	Date      string    `json:"date"`
	Rank      int       `json:"rank"`
	Solved    string    `json:"solved"`
	Finish    string    `json:"finish"`
	Change    string    `json:"change"`
	Direction Direction `json:"direction"`
}

// View is the complete, display-ready dashboard for one session state.
// Only the fields that belong to the state's status are populated.
type View struct {
	Status       session.Status `json:"status"`
	Handle       string         `json:"handle,omitempty"`
	Message      string         `json:"message,omitempty"`
	Cards        *Cards         `json:"cards,omitempty"`
	Distribution []Bucket       `json:"distribution,omitempty"`
	Rows         []Row          `json:"rows,omitempty"`
}

// NewView builds the view for st.
func NewView(st session.State) View {
	v := View{Status: st.Status(), Handle: session.HandleOf(st)}

	switch s := st.(type) {
	case session.Failed:
		v.Message = s.Message
	case session.Ready:
		sum := s.Report.Summary
		v.Cards = &Cards{
			CurrentRating:   Round(sum.CurrentRating),
			PeakRating:      Round(sum.PeakRating),
			TotalContests:   sum.TotalContests,
			LatestChange:    Round(sum.LatestChange),
			LatestDirection: direction(sum.LatestChange),
		}

		maxProblems := sum.MaxProblems()
		v.Distribution = make([]Bucket, 0, len(sum.SolveHistogram))
		for n, count := range sum.SolveHistogram {
			v.Distribution = append(v.Distribution, Bucket{
				Solved: n,
				Count:  count,
				Label:  fmt.Sprintf("%d / %d Solved", n, maxProblems),
			})
		}

		v.Rows = Rows(s.Report.Entries)
	}
	return v
}

// Rows formats entries in the order given.
func Rows(entries []model.EnrichedEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			Contest:   e.Contest.Title,
			Date:      FormatDate(e.Contest.StartTime),
			Rank:      e.Ranking,
			Solved:    FormatSolved(e),
			Finish:    FormatFinish(e.FinishTimeInSeconds),
			Change:    FormatChange(e),
			Direction: direction(e.RatingChange),
		})
	}
	return rows
}

func direction(change float64) Direction {
	if change >= 0 {
		return DirectionUp
	}
	return DirectionDown
}
