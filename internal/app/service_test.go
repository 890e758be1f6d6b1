package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/contestlens/internal/adapters/upstream"
	service "github.com/okian/contestlens/internal/app"
	"github.com/okian/contestlens/internal/domain/model"
	"github.com/okian/contestlens/internal/domain/session"
	"github.com/okian/contestlens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// stubFetcher answers from a table keyed by handle. Handles listed in block
// wait until their channel is closed or the context ends.
type stubFetcher struct {
	mu      sync.Mutex
	history map[string][]model.ContestRecord
	block   map[string]chan struct{}
	calls   []string
}

func (f *stubFetcher) FetchHistory(ctx context.Context, handle string) ([]model.ContestRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, handle)
	gate := f.block[handle]
	records, ok := f.history[handle]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", upstream.ErrFetchFailed, ctx.Err())
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: not_found", upstream.ErrFetchFailed)
	}
	return records, nil
}

func attended(title string, start int64, rating float64, solved int) model.ContestRecord {
	return model.ContestRecord{
		Attended:       true,
		Rating:         rating,
		ProblemsSolved: solved,
		TotalProblems:  4,
		Contest:        model.Contest{Title: title, StartTime: start},
	}
}

func newStub() *stubFetcher {
	return &stubFetcher{
		history: map[string][]model.ContestRecord{
			"alice": {
				attended("B", 200, 1550, 2),
				attended("A", 100, 1600, 3),
				{Attended: false, Rating: 1600, Contest: model.Contest{Title: "skipped", StartTime: 150}},
			},
			"newbie": {},
		},
		block: map[string]chan struct{}{},
	}
}

func TestService_Analyze(t *testing.T) {
	Convey("Given a service backed by a stub fetcher", t, func() {
		fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		stub := newStub()
		svc := service.New(
			service.WithFetcher(stub),
			service.WithClock(func() time.Time { return fixed }),
		)
		ctx := context.Background()

		Convey("When analyzing a known handle with surrounding spaces", func() {
			rep, err := svc.Analyze(ctx, "  alice ")

			Convey("Then the report is built from attended contests only", func() {
				So(err, ShouldBeNil)
				So(rep.Handle, ShouldEqual, "alice")
				So(stub.calls, ShouldResemble, []string{"alice"})
				So(rep.FetchedAt, ShouldEqual, fixed)
				So(len(rep.Entries), ShouldEqual, 2)
				So(rep.Entries[0].Contest.Title, ShouldEqual, "B")
				So(rep.Entries[0].RatingChange, ShouldEqual, -50)
				So(rep.Entries[1].PrevRating, ShouldEqual, 1500)
				So(rep.Summary.PeakRating, ShouldEqual, 1600)
				So(rep.Summary.SolveHistogram, ShouldResemble, []int{0, 0, 1, 1, 0})
			})
		})

		Convey("When analyzing a handle that never attended", func() {
			rep, err := svc.Analyze(ctx, "newbie")

			Convey("Then it succeeds with baseline figures", func() {
				So(err, ShouldBeNil)
				So(rep.Empty(), ShouldBeTrue)
				So(rep.Summary.CurrentRating, ShouldEqual, 1500)
				So(rep.Summary.PeakRating, ShouldEqual, 1500)
				So(rep.Summary.TotalContests, ShouldEqual, 0)
			})
		})

		Convey("When analyzing an unknown handle", func() {
			_, err := svc.Analyze(ctx, "ghost")

			Convey("Then FetchFailed is returned", func() {
				So(errors.Is(err, service.ErrFetchFailed), ShouldBeTrue)
				So(svc.GetStats()["fetchFailures"], ShouldEqual, int64(1))
			})
		})

		Convey("When analyzing a blank handle", func() {
			_, err := svc.Analyze(ctx, "   ")

			Convey("Then no fetch happens", func() {
				So(errors.Is(err, service.ErrEmptyHandle), ShouldBeTrue)
				So(stub.calls, ShouldBeEmpty)
			})
		})
	})

	Convey("Given custom baseline and distribution bound", t, func() {
		svc := service.New(
			service.WithFetcher(newStub()),
			service.WithBaseline(1200),
			service.WithMaxProblems(6),
		)

		Convey("Then both flow into the report", func() {
			rep, err := svc.Analyze(context.Background(), "alice")
			So(err, ShouldBeNil)
			So(rep.Baseline, ShouldEqual, 1200)
			So(rep.Entries[1].PrevRating, ShouldEqual, 1200)
			So(len(rep.Summary.SolveHistogram), ShouldEqual, 7)
			So(svc.GetStats()["maxProblems"], ShouldEqual, 6)
		})
	})

	Convey("Given a fetcher returning a foreign error", t, func() {
		svc := service.New(service.WithFetcher(fetchFunc(func(context.Context, string) ([]model.ContestRecord, error) {
			return nil, errors.New("boom")
		})))

		Convey("Then it is reported as FetchFailed", func() {
			_, err := svc.Analyze(context.Background(), "alice")
			So(errors.Is(err, service.ErrFetchFailed), ShouldBeTrue)
		})
	})
}

type fetchFunc func(context.Context, string) ([]model.ContestRecord, error)

func (f fetchFunc) FetchHistory(ctx context.Context, handle string) ([]model.ContestRecord, error) {
	return f(ctx, handle)
}

func TestService_Run(t *testing.T) {
	Convey("Given a service and a session", t, func() {
		stub := newStub()
		svc := service.New(service.WithFetcher(stub))
		sess := svc.NewSession()
		ctx := context.Background()

		Convey("When a known handle is run", func() {
			err := svc.Run(ctx, sess, "alice")

			Convey("Then the session is ready", func() {
				So(err, ShouldBeNil)
				ready, ok := sess.State().(session.Ready)
				So(ok, ShouldBeTrue)
				So(ready.Report.Summary.CurrentRating, ShouldEqual, 1550)
			})
		})

		Convey("When an unknown handle is run after a success", func() {
			So(svc.Run(ctx, sess, "alice"), ShouldBeNil)
			err := svc.Run(ctx, sess, "ghost")

			Convey("Then the failure replaces the earlier result", func() {
				So(errors.Is(err, service.ErrFetchFailed), ShouldBeTrue)
				failed, ok := sess.State().(session.Failed)
				So(ok, ShouldBeTrue)
				So(failed.Message, ShouldEqual, session.FailureMessage)
				So(failed.Handle, ShouldEqual, "ghost")
			})
		})

		Convey("When a blank handle is run", func() {
			err := svc.Run(ctx, sess, " ")

			Convey("Then the session stays idle", func() {
				So(errors.Is(err, session.ErrBlankHandle), ShouldBeTrue)
				So(sess.State().Status(), ShouldEqual, session.StatusIdle)
			})
		})

		Convey("When a slow request is overtaken by a newer one", func() {
			gate := make(chan struct{})
			stub.mu.Lock()
			stub.block["slow"] = gate
			stub.history["slow"] = []model.ContestRecord{attended("X", 1, 1900, 4)}
			stub.mu.Unlock()

			done := make(chan error, 1)
			go func() { done <- svc.Run(ctx, sess, "slow") }()

			// Wait until the slow request is in flight.
			for sess.State().Status() != session.StatusLoading {
				time.Sleep(time.Millisecond)
			}

			So(svc.Run(ctx, sess, "alice"), ShouldBeNil)
			close(gate)
			slowErr := <-done

			Convey("Then only the newer result is shown", func() {
				So(errors.Is(slowErr, session.ErrStale), ShouldBeTrue)
				ready, ok := sess.State().(session.Ready)
				So(ok, ShouldBeTrue)
				So(ready.Handle, ShouldEqual, "alice")
				So(svc.GetStats()["staleDiscarded"], ShouldEqual, int64(1))
			})
		})

		Convey("When the session is reset during a request", func() {
			gate := make(chan struct{})
			stub.mu.Lock()
			stub.block["alice"] = gate
			stub.mu.Unlock()

			done := make(chan error, 1)
			go func() { done <- svc.Run(ctx, sess, "alice") }()
			for sess.State().Status() != session.StatusLoading {
				time.Sleep(time.Millisecond)
			}
			sess.Reset()
			err := <-done

			Convey("Then the cancelled request is discarded", func() {
				So(errors.Is(err, session.ErrStale), ShouldBeTrue)
				So(sess.State().Status(), ShouldEqual, session.StatusIdle)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a fresh service", t, func() {
		svc := service.New(service.WithFetcher(newStub()))

		Convey("Then stats report configuration and zero counters", func() {
			stats := svc.GetStats()
			So(stats["baselineRating"], ShouldEqual, 1500.0)
			So(stats["maxProblems"], ShouldEqual, 4)
			So(stats["analyses"], ShouldEqual, int64(0))
			So(stats["startedAt"], ShouldNotBeEmpty)
		})
	})
}
