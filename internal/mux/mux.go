package mux

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/yanet-platform/yarouter/internal/dump"
	"github.com/yanet-platform/yarouter/internal/metrics"
)

// ErrClosed is returned when a connection is hung up.
var ErrClosed = errors.New("connection closed")

// Conn is a frame-oriented file descriptor.
type Conn interface {
	Fd() int
	Read(b []byte) (int, error)
}

// Handler processes a received frame.
type Handler interface {
	// Handle processes the frame received on the device and reports
	// whether it retained the frame buffer.
	Handle(device int, frame []byte) bool
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(device int, frame []byte) bool

// Handle calls f(device, frame).
func (f HandlerFunc) Handle(device int, frame []byte) bool {
	return f(device, frame)
}

// Option is a function that configures the multiplexer.
type Option func(*options)

// WithLog configures the multiplexer with a logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

// WithMetrics configures the multiplexer with metrics.
func WithMetrics(metrics *metrics.Metrics) Option {
	return func(o *options) {
		o.Metrics = metrics
	}
}

type options struct {
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
}

func newOptions() *options {
	return &options{
		Log:     zap.NewNop().Sugar(),
		Metrics: metrics.New(nil),
	}
}

// Mux waits for frames on a set of connections and dispatches them to the
// handler one at a time.
type Mux struct {
	conns       []Conn
	handler     Handler
	pollTimeout int
	buffers     sync.Pool
	metrics     *metrics.Metrics
	log         *zap.SugaredLogger
}

// New creates a new multiplexer. The position of a connection is its device
// index.
func New(cfg *Config, conns []Conn, handler Handler, options ...Option) (*Mux, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mux config: %w", err)
	}

	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	frameSize := int(cfg.FrameSize.Bytes())
	m := &Mux{
		conns:       conns,
		handler:     handler,
		pollTimeout: max(1, int(cfg.PollTimeout.Milliseconds())),
		buffers: sync.Pool{
			New: func() any {
				buf := make([]byte, frameSize)
				return &buf
			},
		},
		metrics: opts.Metrics,
		log:     opts.Log,
	}
	return m, nil
}

// Run dispatches frames until the context is canceled or a connection is
// hung up.
func (m *Mux) Run(ctx context.Context) error {
	m.log.Debugw("starting multiplexer", zap.Int("conns", len(m.conns)))
	defer m.log.Debugw("stopped multiplexer")

	fds := make([]unix.PollFd, len(m.conns))
	for idx, conn := range m.conns {
		fds[idx] = unix.PollFd{
			Fd:     int32(conn.Fd()),
			Events: unix.POLLIN,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, m.pollTimeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("failed to poll: %w", err)
		}
		if n == 0 {
			continue
		}

		for idx := range fds {
			revents := fds[idx].Revents
			if revents == 0 {
				continue
			}

			received := false
			if revents&(unix.POLLIN|unix.POLLERR) != 0 {
				received = m.receive(idx)
			}
			// A hung up connection is drained before giving up on it.
			if !received && revents&(unix.POLLHUP|unix.POLLNVAL) != 0 {
				return fmt.Errorf("device %d: %w", idx, ErrClosed)
			}
		}
	}
}

// receive reads and dispatches a single frame, reporting whether there was
// one.
func (m *Mux) receive(device int) bool {
	buf := m.buffers.Get().(*[]byte)

	n, err := m.conns[device].Read(*buf)
	if err != nil {
		m.buffers.Put(buf)
		m.metrics.ReadErrorsTotal.WithLabelValues(strconv.Itoa(device)).Inc()
		m.log.Warnw("failed to read frame", zap.Int("device", device), zap.Error(err))
		return false
	}
	if n == 0 {
		m.buffers.Put(buf)
		return false
	}

	frame := (*buf)[:n]
	if m.log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		m.log.Debugw("received frame", zap.Int("device", device), zap.String("frame", dump.Summary(frame)))
	}

	if !m.handler.Handle(device, frame) {
		m.buffers.Put(buf)
	}
	return true
}
