package forward

import (
	"fmt"
)

// Verdict is the outcome of processing a single frame.
type Verdict uint8

const (
	// Drop means the frame was discarded.
	Drop Verdict = iota
	// Forward means the frame was rewritten and transmitted.
	Forward
	// Queue means the frame waits for its next hop to be resolved.
	Queue
	// Local means the frame is addressed to the router and left to the
	// host stack.
	Local
	// TimeExceeded means the frame expired and an ICMP error was sent back.
	TimeExceeded
	// Learn means the frame was an ARP packet the cache learned from.
	Learn
	// Ignore means the frame carries nothing the router handles.
	Ignore
)

func (m Verdict) String() string {
	switch m {
	case Drop:
		return "drop"
	case Forward:
		return "forward"
	case Queue:
		return "queue"
	case Local:
		return "local"
	case TimeExceeded:
		return "time_exceeded"
	case Learn:
		return "learn"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(m))
	}
}

// Retained reports whether the frame buffer is now owned by the router and
// must not be reused by the caller.
func (m Verdict) Retained() bool {
	return m == Queue
}
