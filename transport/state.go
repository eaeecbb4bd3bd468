package transport

import "github.com/pkg/errors"

type State int

const (
	StateIdle State = iota
	StateEncoding
	StateDisplaying
	StateCancelled
	StateExpired
	StateCompleted
	// StateFailed ends a session whose payloads must be encoded again, e.g. after a
	// malformed signature envelope.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncoding:
		return "encoding"
	case StateDisplaying:
		return "displaying"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal states are never left.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateExpired || s == StateCompleted || s == StateFailed
}

var (
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionExpired is fatal to the session, payloads must be rebuilt for a new one.
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionClosed    = errors.New("session closed")
	ErrSessionCancelled = errors.New("session cancelled")
	ErrThrottled        = errors.New("frame dropped by ingest throttle")
	ErrSubmissionFailed = errors.New("submission failed")
)
