package neigh

import (
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yanet-platform/yarouter/internal/wire"
)

// Entry is a resolution cache slot mapping an IPv4 address reachable
// through a device to its hardware address.
//
// Methods of Entry must be called with the entry locked, which is the case
// for entries passed to the Cache.Walk callback.
type Entry struct {
	mu sync.Mutex

	state        State
	device       int
	addr         netip.Addr
	hardwareAddr wire.HardwareAddr
	updatedAt    time.Time

	probes    int
	nextProbe time.Time
	backoff   backoff.BackOff

	queue SendQueue
}

// State returns the entry state.
func (m *Entry) State() State {
	return m.state
}

// Device returns the index of the device the entry belongs to.
func (m *Entry) Device() int {
	return m.device
}

// Addr returns the resolved IPv4 address.
func (m *Entry) Addr() netip.Addr {
	return m.addr
}

// HardwareAddr returns the hardware address, meaningful only when the entry
// is resolved.
func (m *Entry) HardwareAddr() wire.HardwareAddr {
	return m.hardwareAddr
}

// UpdatedAt returns the time the entry was created or last confirmed.
func (m *Entry) UpdatedAt() time.Time {
	return m.updatedAt
}

// Age returns how long ago the entry was created or last confirmed.
func (m *Entry) Age(now time.Time) time.Duration {
	return now.Sub(m.updatedAt)
}

// Probes returns the number of ARP retransmissions done so far.
func (m *Entry) Probes() int {
	return m.probes
}

// Queued returns the number of frames waiting for this entry.
func (m *Entry) Queued() int {
	return m.queue.Len()
}

// Drain hands queued frames to fn in arrival order and empties the queue.
func (m *Entry) Drain(fn func(frame PendingFrame)) int {
	return m.queue.Drain(fn)
}

// Release frees the slot, discarding queued frames.
//
// Returns the number of discarded frames.
func (m *Entry) Release() int {
	n := m.queue.Clear()

	m.state = Free
	m.addr = netip.Addr{}
	m.hardwareAddr = wire.HardwareAddr{}
	m.probes = 0
	m.nextProbe = time.Time{}
	return n
}

// ProbeDue reports whether the next ARP retransmission is due.
func (m *Entry) ProbeDue(now time.Time) bool {
	return m.state == Pending && !m.nextProbe.IsZero() && !now.Before(m.nextProbe)
}

// MarkProbed accounts an ARP retransmission and schedules the next one.
func (m *Entry) MarkProbed(now time.Time) {
	m.probes++
	m.schedule(now)
}

func (m *Entry) schedule(now time.Time) {
	next := m.backoff.NextBackOff()
	if next == backoff.Stop {
		// No more probes, the pending timeout reclaims the entry.
		m.nextProbe = time.Time{}
		return
	}
	m.nextProbe = now.Add(next)
}

func (m *Entry) matches(device int, addr netip.Addr) bool {
	return m.state != Free && m.device == device && m.addr == addr
}

func (m *Entry) claim(state State, device int, addr netip.Addr, now time.Time) {
	m.state = state
	m.device = device
	m.addr = addr
	m.updatedAt = now
	m.probes = 0
	m.backoff.Reset()
}

func (m *Entry) snapshot() Snapshot {
	return Snapshot{
		State:        m.state,
		Device:       m.device,
		Addr:         m.addr,
		HardwareAddr: m.hardwareAddr,
		UpdatedAt:    m.updatedAt,
		Probes:       m.probes,
		Queued:       m.queue.Len(),
		QueuedBytes:  m.queue.Bytes(),
	}
}

// Snapshot is a copy of an entry's state.
type Snapshot struct {
	State        State
	Device       int
	Addr         netip.Addr
	HardwareAddr wire.HardwareAddr
	UpdatedAt    time.Time
	Probes       int
	Queued       int
	QueuedBytes  int
}
