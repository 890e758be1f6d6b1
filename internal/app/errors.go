package service

import (
	"errors"

	"github.com/okian/contestlens/internal/adapters/upstream"
)

// Service errors.
var (
	ErrEmptyHandle = errors.New("handle must not be empty")
	// ErrFetchFailed covers unknown handles and every upstream failure alike.
	ErrFetchFailed = upstream.ErrFetchFailed
)
