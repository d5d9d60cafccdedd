// Package poolerrors_test provides examples of structured error handling.
package poolerrors_test

import (
	"fmt"
	"io"

	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// Example demonstrates basic error creation with context details.
func Example() {
	err := poolerrors.New(poolerrors.ErrorTypeConfig, "acquire timeout must be positive")

	err = err.WithDetail("acquire_timeout", "-5s").
		WithDetail("section", "pool")

	fmt.Println(err.Error())

	// Output:
	// config: acquire timeout must be positive
}

// ExampleWrap shows wrapping an underlying error while preserving it for
// errors.Is checks.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := poolerrors.Wrap(originalErr, poolerrors.ErrorTypeConnection, "postgres handshake failed").
		WithDetail("host", "db-1.internal").
		WithDetail("attempt", 3)

	if poolerrors.IsType(err, poolerrors.ErrorTypeConnection) {
		fmt.Println("This is a connection error")
	}
	if poolerrors.IsRetryable(err) {
		fmt.Println("Worth retrying")
	}

	// Output:
	// This is a connection error
	// Worth retrying
}

// ExampleIsRetryable shows the retry classification by error type.
func ExampleIsRetryable() {
	timeout := poolerrors.New(poolerrors.ErrorTypeTimeout, "factory deadline exceeded")
	config := poolerrors.New(poolerrors.ErrorTypeConfig, "negative idle limit")

	fmt.Println(poolerrors.IsRetryable(timeout))
	fmt.Println(poolerrors.IsRetryable(config))

	// Output:
	// true
	// false
}
