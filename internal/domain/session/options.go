// Package session tracks the request lifecycle of a dashboard viewer.
package session

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithObserver registers a callback invoked after every state transition.
// It runs while the session lock is held so observers see transitions in
// order; it must not block or call back into the session.
func WithObserver(fn func(State)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}
