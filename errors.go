package main

import (
	"errors"
	"fmt"
)

// ErrNothingSelected is returned by Commit when no candidate is selected.
// It is a local guard; no store call is made.
var ErrNothingSelected = errors.New("no candidates selected")

// CaptureError reports a local image acquisition failure: unreadable input,
// a malformed data URI, or a payload that is not an image.
type CaptureError struct {
	Reason string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: %s: %v", e.Reason, e.Err)
	}
	return "capture: " + e.Reason
}

func (e *CaptureError) Unwrap() error { return e.Err }

// ExtractionError reports a failed round trip to the vision endpoint:
// unreachable, non-success status, or an empty reply body. Extraction is
// never retried automatically; the recovery path is capturing again.
type ExtractionError struct {
	Provider string
	Status   int // HTTP status when known, 0 otherwise
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("vision extraction (%s, status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("vision extraction (%s): %v", e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// CommitError reports a store rejection of the whole commit batch. The
// candidate list is preserved so the user can retry without re-capturing.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit: %v", e.Err) }

func (e *CommitError) Unwrap() error { return e.Err }
