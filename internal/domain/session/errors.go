package session

import "errors"

// Sentinel kinds for session errors.
var (
	ErrStale       = errors.New("stale response discarded")
	ErrBlankHandle = errors.New("blank handle")
)
