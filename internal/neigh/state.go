package neigh

import (
	"fmt"
)

// State is the lifecycle state of a resolution entry.
type State uint8

const (
	// Free marks an unused slot.
	Free State = iota
	// Pending marks an entry whose hardware address is being resolved.
	Pending
	// Resolved marks an entry with a known hardware address.
	Resolved
)

func (m State) String() string {
	switch m {
	case Free:
		return "free"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", uint8(m))
	}
}
