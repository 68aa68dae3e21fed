package engine

import "errors"

var (
	// ErrInvalidConfiguration is returned by New for a non-positive quota or a
	// negative window.
	ErrInvalidConfiguration = errors.New("invalid rate limiter configuration")

	// ErrInvalidArgument is returned by Admit for a batch that is non-positive
	// or larger than the whole quota.
	ErrInvalidArgument = errors.New("invalid permit request")

	// ErrCancelled is returned by Admit when the caller's context ends before
	// the batch fits. The returned error also wraps the context cause, so
	// errors.Is(err, context.DeadlineExceeded) identifies caller deadlines.
	ErrCancelled = errors.New("permit wait cancelled")
)
