package pool

import "errors"

// Status classifies the outcome of an acquisition. The taxonomy is scoped
// to this package: every failure that can surface from Acquire is one of
// these values, and nothing else crosses the pool boundary.
type Status int

const (
	// StatusOK is a successful acquisition.
	StatusOK Status = iota
	// StatusTimedOut means the wait ended (deadline or cancelation)
	// before capacity became available.
	StatusTimedOut
	// StatusConstructionFailed means the factory returned an error; the
	// live count is unaffected.
	StatusConstructionFailed
	// StatusClosed means the pool was closed before or during the wait.
	StatusClosed
	// StatusUnknown covers any other failure, such as a recovered
	// factory panic.
	StatusUnknown
)

// String returns the human-readable form of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimedOut:
		return "timed out"
	case StatusConstructionFailed:
		return "construction failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by Acquire. It carries the Status and
// wraps the underlying cause, so errors.Is matches both the package
// sentinels (by status) and the cause chain (for example
// context.DeadlineExceeded behind StatusTimedOut).
type Error struct {
	Status Status
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "pool: " + e.Status.String() + ": " + e.Cause.Error()
	}
	return "pool: " + e.Status.String()
}

// Unwrap exposes the cause for errors.Is/errors.As traversal.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same status, which makes the
// sentinels below work with errors.Is regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

// Sentinels for errors.Is checks against acquisition failures.
var (
	ErrTimedOut           = &Error{Status: StatusTimedOut}
	ErrConstructionFailed = &Error{Status: StatusConstructionFailed}
	ErrClosed             = &Error{Status: StatusClosed}
)

// StatusOf extracts the acquisition status from an error chain. A nil
// error is StatusOK; an error without a *Error in its chain is
// StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusUnknown
}
