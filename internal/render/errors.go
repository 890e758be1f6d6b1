package render

import "errors"

// Chart rendering errors.
var (
	ErrNoContests    = errors.New("no attended contests to chart")
	ErrUnknownFormat = errors.New("unknown chart format")
)
