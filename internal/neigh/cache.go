package neigh

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/yanet-platform/yarouter/internal/wire"
)

// Prober sends ARP requests on behalf of the cache.
type Prober interface {
	// SendRequest broadcasts an ARP request for the address on the device.
	SendRequest(device int, addr netip.Addr) error
}

// Option is a function that configures the cache.
type Option func(*options)

// WithLog configures the cache with a logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

// WithClock configures the cache with a time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.Now = now
	}
}

// WithBackOff configures the factory of per-entry ARP retransmission
// policies.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) {
		o.NewBackOff = fn
	}
}

type options struct {
	Log        *zap.SugaredLogger
	Now        func() time.Time
	NewBackOff func() backoff.BackOff
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
		Now: time.Now,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Cache maps (device, IPv4 address) pairs to hardware addresses and keeps
// frames waiting for unresolved addresses.
//
// Slots are allocated once and reused. Each slot is protected by its own
// lock, while claiming a slot for a new entry is serialized by a separate
// allocation lock. At most one entry lock is held at any time.
type Cache struct {
	entries []Entry
	allocMu sync.Mutex
	prober  Prober
	notify  chan struct{}
	now     func() time.Time
	log     *zap.SugaredLogger
}

// NewCache creates a new resolution cache.
func NewCache(cfg *Config, prober Prober, options ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	entries := make([]Entry, cfg.Capacity)
	for idx := range entries {
		entries[idx].queue = NewSendQueue(cfg.MaxQueueLen, int(cfg.MaxQueueSize.Bytes()))
		entries[idx].backoff = opts.NewBackOff()
	}

	m := &Cache{
		entries: entries,
		prober:  prober,
		notify:  make(chan struct{}, 1),
		now:     opts.Now,
		log:     opts.Log,
	}
	return m, nil
}

// Capacity returns the number of slots.
func (m *Cache) Capacity() int {
	return len(m.entries)
}

// Notify returns a channel that receives a value when an entry with queued
// frames becomes resolved.
//
// Notifications coalesce.
func (m *Cache) Notify() <-chan struct{} {
	return m.notify
}

func (m *Cache) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Resolve returns the hardware address of addr on the device if the frame
// may be transmitted right away.
//
// Otherwise the frame is queued and ErrNotReady is returned, in which case
// the cache owns the frame. A miss creates a pending entry and sends an ARP
// request. Frames are never reordered: once an entry has queued frames,
// every following frame is queued behind them until they are flushed.
func (m *Cache) Resolve(device int, addr netip.Addr, frame []byte) (wire.HardwareAddr, error) {
	now := m.now()

	if e := m.find(device, addr); e != nil {
		defer e.mu.Unlock()
		return e.resolve(frame, now, m.signal)
	}

	e, created, err := m.alloc(device, addr, Pending, now)
	if err != nil {
		return wire.HardwareAddr{}, err
	}
	if !created {
		defer e.mu.Unlock()
		return e.resolve(frame, now, m.signal)
	}

	e.schedule(now)
	appendErr := e.queue.Append(frame, now)
	e.mu.Unlock()

	m.log.Debugw("created pending entry",
		zap.Int("device", device),
		zap.Stringer("addr", addr),
	)

	if err := m.prober.SendRequest(device, addr); err != nil {
		m.log.Warnw("failed to send ARP request",
			zap.Int("device", device),
			zap.Stringer("addr", addr),
			zap.Error(err),
		)
	}

	if appendErr != nil {
		return wire.HardwareAddr{}, appendErr
	}
	return wire.HardwareAddr{}, ErrNotReady
}

func (m *Entry) resolve(frame []byte, now time.Time, signal func()) (wire.HardwareAddr, error) {
	if m.state == Resolved && m.queue.Len() == 0 {
		return m.hardwareAddr, nil
	}

	if err := m.queue.Append(frame, now); err != nil {
		return wire.HardwareAddr{}, err
	}
	if m.state == Resolved {
		signal()
	}
	return wire.HardwareAddr{}, ErrNotReady
}

// Update records that addr on the device is at the given hardware address.
//
// Queued frames of the entry are flushed by the resolver afterwards.
func (m *Cache) Update(device int, addr netip.Addr, hardwareAddr wire.HardwareAddr) error {
	now := m.now()

	prev := Free
	e := m.find(device, addr)
	if e != nil {
		prev = e.state
	} else {
		var created bool
		var err error
		e, created, err = m.alloc(device, addr, Resolved, now)
		if err != nil {
			return err
		}
		if !created {
			prev = e.state
		}
	}

	e.state = Resolved
	e.hardwareAddr = hardwareAddr
	e.updatedAt = now
	e.probes = 0
	e.nextProbe = time.Time{}
	queued := e.queue.Len()
	e.mu.Unlock()

	if prev != Resolved {
		m.log.Debugw("resolved entry",
			zap.Int("device", device),
			zap.Stringer("addr", addr),
			zap.Stringer("hardware_addr", hardwareAddr),
			zap.Int("queued", queued),
		)
	}
	if queued > 0 {
		m.signal()
	}
	return nil
}

// Lookup returns a copy of the entry for addr on the device.
func (m *Cache) Lookup(device int, addr netip.Addr) (Snapshot, bool) {
	e := m.find(device, addr)
	if e == nil {
		return Snapshot{}, false
	}
	defer e.mu.Unlock()

	return e.snapshot(), true
}

// Entries returns copies of all occupied entries.
func (m *Cache) Entries() []Snapshot {
	out := make([]Snapshot, 0)
	m.Walk(func(e *Entry) {
		out = append(out, e.snapshot())
	})
	return out
}

// Len returns the number of occupied slots.
func (m *Cache) Len() int {
	n := 0
	m.Walk(func(*Entry) {
		n++
	})
	return n
}

// Walk calls fn for every occupied entry with that entry locked.
func (m *Cache) Walk(fn func(e *Entry)) {
	for idx := range m.entries {
		e := &m.entries[idx]

		e.mu.Lock()
		if e.state != Free {
			fn(e)
		}
		e.mu.Unlock()
	}
}

// find returns the locked entry for addr on the device, or nil.
func (m *Cache) find(device int, addr netip.Addr) *Entry {
	for idx := range m.entries {
		e := &m.entries[idx]

		e.mu.Lock()
		if e.matches(device, addr) {
			return e
		}
		e.mu.Unlock()
	}
	return nil
}

// alloc claims a slot for addr on the device and returns it locked.
//
// If another caller has created the entry in the meantime, it is returned
// instead with created set to false.
func (m *Cache) alloc(device int, addr netip.Addr, state State, now time.Time) (*Entry, bool, error) {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()

	if e := m.find(device, addr); e != nil {
		return e, false, nil
	}

	if e := m.claimFree(); e != nil {
		e.claim(state, device, addr, now)
		return e, true, nil
	}

	if e := m.evict(); e != nil {
		m.log.Debugw("evicted entry",
			zap.Int("device", e.device),
			zap.Stringer("addr", e.addr),
			zap.Stringer("state", e.state),
		)
		e.claim(state, device, addr, now)
		return e, true, nil
	}

	return nil, false, fmt.Errorf("failed to allocate entry for %s on device %d: %w", addr, device, ErrCacheFull)
}

func (m *Cache) claimFree() *Entry {
	for idx := range m.entries {
		e := &m.entries[idx]

		e.mu.Lock()
		if e.state == Free {
			return e
		}
		e.mu.Unlock()
	}
	return nil
}

// evict returns the least recently updated entry without queued frames,
// locked, or nil if every entry has frames waiting.
func (m *Cache) evict() *Entry {
	victim := -1
	var oldest time.Time

	for idx := range m.entries {
		e := &m.entries[idx]

		e.mu.Lock()
		if e.queue.Len() == 0 && (victim < 0 || e.updatedAt.Before(oldest)) {
			victim = idx
			oldest = e.updatedAt
		}
		e.mu.Unlock()
	}
	if victim < 0 {
		return nil
	}

	// The victim may have changed while unlocked.
	e := &m.entries[victim]
	e.mu.Lock()
	if e.queue.Len() != 0 {
		e.mu.Unlock()
		return nil
	}
	e.Release()
	return e
}
