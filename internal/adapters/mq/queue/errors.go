package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("reply queue full")
	ErrClosed = errors.New("reply queue closed")
)
