package session

import "github.com/okian/contestlens/internal/domain/report"

// FailureMessage is shown for every fetch failure. Unknown handles and
// network errors are intentionally indistinguishable.
const FailureMessage = "User not found or failed to fetch"

// Status names the lifecycle phase of a session.
type Status string

// Session statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusSuccess Status = "success"
)

// State is one of Idle, Loading, Failed or Ready.
type State interface {
	Status() Status
	sealed()
}

// Idle is the state before any submission or after a reset.
type Idle struct{}

// Loading means a request for Handle is in flight.
type Loading struct {
	Handle string
	Seq    uint64
}

// Failed means the latest request for Handle did not produce a report.
type Failed struct {
	Handle  string
	Seq     uint64
	Message string
}

// Ready holds the report produced by the latest request.
type Ready struct {
	Handle string
	Seq    uint64
	Report report.Report
}

func (Idle) Status() Status    { return StatusIdle }
func (Loading) Status() Status { return StatusLoading }
func (Failed) Status() Status  { return StatusError }
func (Ready) Status() Status   { return StatusSuccess }

func (Idle) sealed()    {}
func (Loading) sealed() {}
func (Failed) sealed()  {}
func (Ready) sealed()   {}

// HandleOf returns the handle a state refers to, or "" when idle.
func HandleOf(st State) string {
	switch v := st.(type) {
	case Loading:
		return v.Handle
	case Failed:
		return v.Handle
	case Ready:
		return v.Handle
	default:
		return ""
	}
}
