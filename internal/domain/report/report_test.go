package report_test

import (
	"testing"
	"time"

	"github.com/okian/contestlens/internal/domain/model"
	"github.com/okian/contestlens/internal/domain/report"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	Convey("Given raw records for a handle", t, func() {
		now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
		records := []model.ContestRecord{
			{Attended: true, Rating: 1600, ProblemsSolved: 2, Contest: model.Contest{Title: "b", StartTime: 200}},
			{Attended: false, Rating: 0, Contest: model.Contest{Title: "skipped", StartTime: 150}},
			{Attended: true, Rating: 1540, ProblemsSolved: 1, Contest: model.Contest{Title: "a", StartTime: 100}},
		}

		Convey("When building the report", func() {
			r := report.Build("alice", records, 1500, 4, now)

			Convey("Then it carries the pipeline and aggregator output", func() {
				So(r.Handle, ShouldEqual, "alice")
				So(r.Empty(), ShouldBeFalse)
				So(len(r.Entries), ShouldEqual, 2)
				So(r.Entries[0].Contest.Title, ShouldEqual, "b")
				So(r.Summary.CurrentRating, ShouldEqual, 1600)
				So(r.Summary.TotalContests, ShouldEqual, 2)
				So(r.Summary.SolveHistogram, ShouldResemble, []int{0, 1, 1, 0, 0})
				So(r.Baseline, ShouldEqual, 1500)
				So(r.FetchedAt.Equal(now), ShouldBeTrue)
			})
		})

		Convey("When no contest was attended", func() {
			r := report.Build("bob", records[1:2], 1500, 3, now)

			Convey("Then the report is empty but valid", func() {
				So(r.Empty(), ShouldBeTrue)
				So(r.Summary.PeakRating, ShouldEqual, 1500)
				So(r.Summary.SolveHistogram, ShouldResemble, []int{0, 0, 0, 0})
			})
		})
	})
}
