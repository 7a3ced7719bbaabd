package neigh

import (
	"errors"
)

var (
	// ErrNotReady is returned when the frame was queued until the address
	// is resolved.
	ErrNotReady = errors.New("resolution pending")
	// ErrCacheFull is returned when no slot can be claimed for a new entry.
	ErrCacheFull = errors.New("resolution cache is full")
	// ErrQueueFull is returned when the pending queue of an entry can not
	// take one more frame.
	ErrQueueFull = errors.New("pending queue is full")
)
