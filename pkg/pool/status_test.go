package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"ok", StatusOK, "ok"},
		{"timed out", StatusTimedOut, "timed out"},
		{"construction failed", StatusConstructionFailed, "construction failed"},
		{"closed", StatusClosed, "closed"},
		{"unknown", StatusUnknown, "unknown"},
		{"out of range", Status(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil error", nil, StatusOK},
		{"bare pool error", &Error{Status: StatusTimedOut}, StatusTimedOut},
		{"wrapped pool error", fmt.Errorf("acquire: %w", &Error{Status: StatusClosed}), StatusClosed},
		{"construction failure with cause", &Error{Status: StatusConstructionFailed, Cause: errors.New("dial")}, StatusConstructionFailed},
		{"foreign error", errors.New("not ours"), StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "pool: timed out", (&Error{Status: StatusTimedOut}).Error())
	assert.Equal(t, "pool: construction failed: dial refused",
		(&Error{Status: StatusConstructionFailed, Cause: errors.New("dial refused")}).Error())
}

func TestErrorSentinelMatching(t *testing.T) {
	cause := errors.New("remote hung up")
	err := error(&Error{Status: StatusConstructionFailed, Cause: cause})

	assert.True(t, errors.Is(err, ErrConstructionFailed))
	assert.False(t, errors.Is(err, ErrTimedOut))
	assert.False(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(err, cause), "cause should stay reachable through Unwrap")

	var pe *Error
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, StatusConstructionFailed, pe.Status)
}

func TestTimeoutErrorWrapsContextCause(t *testing.T) {
	err := error(&Error{Status: StatusTimedOut, Cause: context.DeadlineExceeded})
	assert.True(t, errors.Is(err, ErrTimedOut))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
