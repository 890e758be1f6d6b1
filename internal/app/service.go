// Package service provides the analytics service behind the HTTP API, the
// live session transport and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/contestlens/internal/adapters/upstream"
	"github.com/okian/contestlens/internal/domain/history"
	"github.com/okian/contestlens/internal/domain/report"
	"github.com/okian/contestlens/internal/domain/session"
	"github.com/okian/contestlens/internal/domain/summary"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

// Analysis outcomes used as metric labels.
const (
	outcomeSuccess     = "success"
	outcomeFetchFailed = "fetch_failed"
	outcomeEmptyHandle = "empty_handle"
)

// Service fetches contest history and turns it into reports.
type Service struct {
	// Core components
	fetcher upstream.Fetcher

	// Configuration
	baseline    float64
	maxProblems int
	now         func() time.Time

	// State
	startedAt time.Time
	analyses  atomic.Int64
	failures  atomic.Int64
	stale     atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFetcher sets where contest history comes from.
func WithFetcher(f upstream.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithBaseline sets the rating held before the first contest.
func WithBaseline(rating float64) Option {
	return func(s *Service) {
		s.baseline = rating
	}
}

// WithMaxProblems sets the highest bucket of the solve distribution.
func WithMaxProblems(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxProblems = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Without WithFetcher it queries the public
// ranking service directly.
func New(opts ...Option) *Service {
	s := &Service{
		baseline:    history.DefaultBaseline,
		maxProblems: summary.DefaultMaxProblems,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.fetcher == nil {
		s.fetcher = upstream.NewClient(upstream.WithLogger(s.logger))
	}
	s.startedAt = s.now()
	return s
}

// Analyze fetches the history of handle and builds its report. A handle with
// no attended contests yields a report with baseline ratings, not an error.
func (s *Service) Analyze(ctx context.Context, handle string) (report.Report, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		metrics.RecordAnalysis(outcomeEmptyHandle, 0)
		return report.Report{}, ErrEmptyHandle
	}

	start := time.Now()
	s.analyses.Add(1)

	records, err := s.fetcher.FetchHistory(ctx, handle)
	elapsed := time.Since(start)
	if err != nil {
		s.failures.Add(1)
		metrics.RecordAnalysis(outcomeFetchFailed, float64(elapsed.Milliseconds()))
		s.logger.Warn(ctx, "contest history fetch failed",
			logger.String("handle", handle),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return report.Report{}, err
	}

	rep := report.Build(handle, records, s.baseline, s.maxProblems, s.now())
	metrics.RecordAnalysis(outcomeSuccess, float64(elapsed.Milliseconds()))
	metrics.RecordContestsAnalyzed(len(rep.Entries))

	s.logger.Debug(ctx, "contest history analyzed",
		logger.String("handle", handle),
		logger.Int("records", len(records)),
		logger.Int("attended", len(rep.Entries)),
		logger.Float64("currentRating", rep.Summary.CurrentRating),
		logger.Duration("elapsed", elapsed),
	)
	return rep, nil
}

// NewSession returns an idle session that logs its transitions.
func (s *Service) NewSession(opts ...session.Option) *session.Session {
	var id string
	log := s.logger.Named("session")
	opts = append(opts, session.WithObserver(func(st session.State) {
		log.Debug(context.Background(), "session transition",
			logger.String("session", id),
			logger.String("status", string(st.Status())),
			logger.String("handle", session.HandleOf(st)),
		)
	}))
	sess := session.New(opts...)
	id = sess.ID()
	return sess
}

// Run submits handle on sess, analyzes it and applies the outcome. It blocks
// until the analysis finishes or is superseded. A result that arrives after a
// newer submission or a reset is dropped and session.ErrStale is returned.
func (s *Service) Run(ctx context.Context, sess *session.Session, handle string) error {
	reqCtx, ticket, err := sess.Submit(ctx, handle)
	if err != nil {
		return err
	}

	rep, analyzeErr := s.Analyze(reqCtx, ticket.Handle)
	if analyzeErr != nil {
		err = sess.Fail(ticket, analyzeErr)
	} else {
		err = sess.Resolve(ticket, rep)
	}

	if errors.Is(err, session.ErrStale) {
		s.stale.Add(1)
		metrics.RecordStaleResponse()
		s.logger.Debug(ctx, "discarded stale result",
			logger.String("session", sess.ID()),
			logger.String("handle", ticket.Handle),
			logger.Int("seq", int(ticket.Seq)),
		)
		return err
	}
	return analyzeErr
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"startedAt":      s.startedAt.UTC().Format(time.RFC3339),
		"uptimeSeconds":  int64(s.now().Sub(s.startedAt).Seconds()),
		"baselineRating": s.baseline,
		"maxProblems":    s.maxProblems,
		"analyses":       s.analyses.Load(),
		"fetchFailures":  s.failures.Load(),
		"staleDiscarded": s.stale.Load(),
	}
}
