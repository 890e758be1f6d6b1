package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/contestlens/internal/domain/report"
)

// Ticket identifies one submitted request. Only the ticket of the most
// recent submission may change the session state.
type Ticket struct {
	Handle string
	Seq    uint64
}

// Session is the request lifecycle of a single viewer. A new submission
// supersedes any in-flight one: results carrying an older ticket are
// discarded, and the older request's context is cancelled.
type Session struct {
	mu        sync.Mutex
	id        string
	seq       uint64
	state     State
	cancel    context.CancelFunc
	observers []func(State)
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{
		id:    uuid.NewString(),
		state: Idle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit starts a request for handle and moves the session to Loading.
// The returned context is cancelled when a later Submit or Reset supersedes
// this request. A blank handle leaves the session untouched.
func (s *Session) Submit(ctx context.Context, handle string) (context.Context, Ticket, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ctx, Ticket{}, ErrBlankHandle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersede()
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.seq++
	t := Ticket{Handle: handle, Seq: s.seq}
	s.transition(Loading{Handle: handle, Seq: t.Seq})
	return reqCtx, t, nil
}

// Resolve records a successful result for t. It returns ErrStale and leaves
// the state unchanged when t is no longer the latest request.
func (s *Session) Resolve(t Ticket, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return ErrStale
	}
	s.supersede()
	s.transition(Ready{Handle: t.Handle, Seq: t.Seq, Report: r})
	return nil
}

// Fail records a failed result for t, replacing any previously shown report.
// It returns ErrStale when t is no longer the latest request.
func (s *Session) Fail(t Ticket, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return ErrStale
	}
	s.supersede()
	s.transition(Failed{Handle: t.Handle, Seq: t.Seq, Message: FailureMessage})
	return nil
}

// Reset returns the session to Idle and invalidates any in-flight request.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersede()
	s.seq++
	s.transition(Idle{})
}

// Close cancels any in-flight request without changing the state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersede()
}

func (s *Session) current(t Ticket) bool {
	_, loading := s.state.(Loading)
	return loading && t.Seq == s.seq
}

// supersede releases the context of the in-flight request, if any.
// Caller holds mu.
func (s *Session) supersede() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) transition(st State) {
	s.state = st
	for _, fn := range s.observers {
		fn(st)
	}
}
