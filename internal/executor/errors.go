package executor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-item packaging failures.
//
// External writers raise heterogeneous errors (missing files, malformed
// inputs, converter crashes); the executor normalizes all of them into this
// closed set at its boundary so nothing library-specific leaks into batch
// results.
type ErrorKind string

const (
	// KindMissingModality means the session lacks raw data required for
	// packaging. Detected by preflight or reported by the writer.
	KindMissingModality ErrorKind = "MISSING_MODALITY"

	// KindWriteFailure means the external writer failed mid-conversion.
	// The prior artifact, if any, is left untouched.
	KindWriteFailure ErrorKind = "WRITE_FAILURE"

	// KindInterrupted means the item was never dispatched because the batch
	// received a shutdown request.
	KindInterrupted ErrorKind = "INTERRUPTED"
)

// ErrMissingModality is the sentinel a Writer returns (wrapped) when a
// required raw data stream is absent. The executor classifies it as
// KindMissingModality instead of a generic write failure.
var ErrMissingModality = errors.New("missing required modality")

// classify maps a writer error to an ErrorKind.
func classify(err error) ErrorKind {
	if errors.Is(err, ErrMissingModality) {
		return KindMissingModality
	}
	return KindWriteFailure
}

// MissingModalityError builds a wrapped ErrMissingModality naming the stream.
func MissingModalityError(sessionID, modality string) error {
	return fmt.Errorf("%w: session %s has no %s data", ErrMissingModality, sessionID, modality)
}
