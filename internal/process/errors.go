package process

import "errors"

// Sentinel errors for the process package.
var (
	// ErrListFailed is returned when the process table cannot be read.
	ErrListFailed = errors.New("process listing failed")

	// ErrCommandTimeout is returned when an introspection command exceeds its deadline.
	ErrCommandTimeout = errors.New("command timed out")
)
