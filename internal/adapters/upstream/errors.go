package upstream

import "errors"

// ErrFetchFailed covers every way a history fetch can fail: unknown handle,
// malformed response, upstream error status or transport failure. Callers
// are not expected to tell them apart.
var ErrFetchFailed = errors.New("fetch failed")

// failure causes, used as metric labels and in wrapped error text.
const (
	causeBlankHandle = "blank_handle"
	causeTransport   = "transport"
	causeStatus      = "status"
	causeDecode      = "decode"
	causeGraphQL     = "graphql"
	causeNotFound    = "not_found"
)
