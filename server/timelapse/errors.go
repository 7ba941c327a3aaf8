package timelapse

import (
	"errors"
)

// The error taxonomy of the assembly engine. Callers test with errors.Is.
// Not-found conditions surface as snapdb.ErrNotFound, which this package
// passes through unchanged.
var (
	// ErrInvalidFilter means malformed query parameters (bad time range,
	// bad time-of-day, non-positive fps). Rejected immediately, never retried.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrEmptyInput means zero frames survived filtering and loading.
	// Terminal for a generation; no artifact is produced.
	ErrEmptyInput = errors.New("no frames to encode")

	// ErrEncoding means the video writer failed. Terminal; any partial
	// artifact has been removed.
	ErrEncoding = errors.New("video encoding failed")

	// ErrBusy means the concurrent-generation limit was hit. The caller may
	// retry later; the engine never queues or retries internally.
	ErrBusy = errors.New("too many simultaneous video generations")

	// ErrCancelled means the caller's context was cancelled mid-pipeline.
	// Terminal for that generation; any partial artifact has been removed.
	ErrCancelled = errors.New("generation cancelled")
)
