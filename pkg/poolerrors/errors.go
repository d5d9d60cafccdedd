// Package poolerrors provides structured error handling for everything in
// this module outside the acquire fast path: configuration loading,
// resource factories, observability setup, and the CLI. The pool core keeps
// its own scoped status taxonomy; this package covers the rest with error
// categorization, key-value context, and call-site capture.
//
// # Basic Usage
//
//	// Create a new error
//	err := poolerrors.New(poolerrors.ErrorTypeConfig, "idle limit must not be negative")
//
//	// Add context
//	err = err.WithDetail("idle_limit", cfg.IdleLimit)
//
//	// Wrap existing errors
//	if err := conn.Ping(ctx); err != nil {
//	    return poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "postgres ping failed").
//	        WithDetail("host", cfg.Host)
//	}
//
// # Error Types
//
// Categorizing errors by type drives retry decisions, log labeling, and
// exit codes in the CLI.
//
// # Stack Traces
//
// Call stacks are captured at creation points, so a wrapped factory error
// still names the factory that produced it.
package poolerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType categorizes an error for handling strategies and monitoring.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapability represents feature-not-supported errors
	ErrorTypeCapability ErrorType = "capability"
)

// Error is a structured error carrying a category, a human-readable
// message, the underlying cause, optional key-value details, and the call
// stack captured at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one frame of the captured call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface, formatting the type, message, and
// cause when present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value pair to the error. Chainable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type and message, capturing the call
// stack at the creation point.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a category and message, preserving the
// original as the cause. If err is already a structured Error its stack is
// kept; wrapping nil returns nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable reports whether the error's category is worth retrying.
// Timeout and connection errors are; validation, config, capability, and
// internal errors are not.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType reports whether the error chain contains a structured Error of
// the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack records up to maxFrames call-stack frames, skipping the
// innermost skip frames.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
