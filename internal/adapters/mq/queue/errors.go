package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("triage queue is full")
	ErrClosed = errors.New("triage queue is closed")
)
