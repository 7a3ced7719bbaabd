package resolver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/metrics"
	"github.com/yanet-platform/yarouter/internal/neigh"
	"github.com/yanet-platform/yarouter/internal/wire"
)

// Option is a function that configures the resolver.
type Option func(*options)

// WithLog configures the resolver with a logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

// WithMetrics configures the resolver with metrics.
func WithMetrics(metrics *metrics.Metrics) Option {
	return func(o *options) {
		o.Metrics = metrics
	}
}

// WithClock configures the resolver with a time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.Now = now
	}
}

type options struct {
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func newOptions() *options {
	return &options{
		Log:     zap.NewNop().Sugar(),
		Metrics: metrics.New(nil),
		Now:     time.Now,
	}
}

// SweepStats summarizes a single sweep.
type SweepStats struct {
	// Flushed is the number of queued frames transmitted.
	Flushed int
	// Discarded is the number of queued frames dropped.
	Discarded int
	// Probed is the number of ARP requests retransmitted.
	Probed int
	// Expired is the number of entries freed by timeout.
	Expired int
	// Failed is the number of entries freed after exhausting retries.
	Failed int
}

// Daemon services the resolution cache in the background: it flushes
// frames of resolved entries, retransmits ARP requests for pending ones and
// expires stale entries.
type Daemon struct {
	cfg     *Config
	cache   *neigh.Cache
	ports   [2]*device.Port
	tx      Transmitter
	prober  neigh.Prober
	metrics *metrics.Metrics
	now     func() time.Time
	log     *zap.SugaredLogger
}

// NewDaemon creates a new resolver daemon.
func NewDaemon(
	cfg *Config,
	cache *neigh.Cache,
	ports [2]*device.Port,
	tx Transmitter,
	prober neigh.Prober,
	options ...Option,
) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resolver config: %w", err)
	}

	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	m := &Daemon{
		cfg:     cfg,
		cache:   cache,
		ports:   ports,
		tx:      tx,
		prober:  prober,
		metrics: opts.Metrics,
		now:     opts.Now,
		log:     opts.Log,
	}
	return m, nil
}

// Run sweeps the cache every tick and whenever an entry with queued frames
// gets resolved, until the context is canceled.
//
// Frames still queued on exit are abandoned.
func (m *Daemon) Run(ctx context.Context) error {
	m.log.Debugw("starting resolver", zap.Duration("tick_interval", m.cfg.TickInterval))
	defer m.log.Debugw("stopped resolver")

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-m.cache.Notify():
		}

		m.Sweep(m.now())
	}
}

// Sweep visits every occupied entry once.
func (m *Daemon) Sweep(now time.Time) SweepStats {
	stats := SweepStats{}

	m.cache.Walk(func(e *neigh.Entry) {
		switch e.State() {
		case neigh.Resolved:
			m.sweepResolved(e, now, &stats)
		case neigh.Pending:
			m.sweepPending(e, now, &stats)
		}
	})

	if stats != (SweepStats{}) {
		m.log.Debugw("swept resolution cache",
			zap.Int("flushed", stats.Flushed),
			zap.Int("discarded", stats.Discarded),
			zap.Int("probed", stats.Probed),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats
}

func (m *Daemon) sweepResolved(e *neigh.Entry, now time.Time, stats *SweepStats) {
	if e.Queued() > 0 {
		m.flush(e, stats)
	}

	if e.Age(now) > m.cfg.ResolvedTTL {
		m.release(e, "expired", stats)
		stats.Expired++
	}
}

func (m *Daemon) sweepPending(e *neigh.Entry, now time.Time, stats *SweepStats) {
	if e.Age(now) > m.cfg.PendingTTL {
		m.release(e, "expired", stats)
		stats.Expired++
		return
	}

	if !e.ProbeDue(now) {
		return
	}

	if e.Probes() >= m.cfg.MaxRetries {
		m.log.Debugw("failed to resolve",
			zap.Int("device", e.Device()),
			zap.Stringer("addr", e.Addr()),
			zap.Int("probes", e.Probes()),
		)
		m.release(e, "failed", stats)
		stats.Failed++
		return
	}

	if err := m.prober.SendRequest(e.Device(), e.Addr()); err != nil {
		m.log.Warnw("failed to retransmit ARP request", zap.Error(err))
	}
	e.MarkProbed(now)
	stats.Probed++
}

// flush transmits queued frames in arrival order.
//
// The entry stays locked for the whole flush, so frames arriving meanwhile
// queue up behind the flushed ones.
func (m *Daemon) flush(e *neigh.Entry, stats *SweepStats) {
	device := e.Device()
	port := m.ports[device]
	dst := e.HardwareAddr()
	label := strconv.Itoa(device)

	e.Drain(func(frame neigh.PendingFrame) {
		if err := wire.ForwardFrame(frame.Data, dst, port.HardwareAddr); err != nil {
			m.log.Debugw("discarded malformed queued frame", zap.Error(err))
			m.metrics.DiscardedTotal.WithLabelValues("malformed").Inc()
			stats.Discarded++
			return
		}

		if err := m.tx.Transmit(device, frame.Data); err != nil {
			m.log.Warnw("failed to transmit queued frame",
				zap.String("device", port.Name),
				zap.Error(err),
			)
			m.metrics.TransmitErrorsTotal.WithLabelValues(label).Inc()
			stats.Discarded++
			return
		}

		m.metrics.TransmittedTotal.WithLabelValues(label).Inc()
		m.metrics.FlushedTotal.Inc()
		stats.Flushed++
	})
}

func (m *Daemon) release(e *neigh.Entry, reason string, stats *SweepStats) {
	addr := e.Addr()
	state := e.State()

	n := e.Release()
	stats.Discarded += n

	m.metrics.ReleasedTotal.WithLabelValues(reason).Inc()
	m.metrics.DiscardedTotal.WithLabelValues(reason).Add(float64(n))

	m.log.Debugw("released entry",
		zap.Stringer("addr", addr),
		zap.Stringer("state", state),
		zap.String("reason", reason),
		zap.Int("discarded", n),
	)
}
