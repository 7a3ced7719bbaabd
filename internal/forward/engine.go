package forward

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"go.uber.org/zap"

	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/metrics"
	"github.com/yanet-platform/yarouter/internal/neigh"
	"github.com/yanet-platform/yarouter/internal/wire"
)

var (
	// ErrNotForUs is returned for frames addressed to another station.
	ErrNotForUs = errors.New("frame is not addressed to the router")
	// ErrBadChecksum is returned for IPv4 headers with a wrong checksum.
	ErrBadChecksum = errors.New("bad IPv4 header checksum")
	// ErrTransmit wraps transmission failures.
	ErrTransmit = errors.New("failed to transmit")
)

// Resolver maps next hops to hardware addresses, queueing frames while
// resolution is in progress.
type Resolver interface {
	// Resolve returns the hardware address of addr on the device or queues
	// the frame, returning neigh.ErrNotReady.
	Resolve(device int, addr netip.Addr, frame []byte) (wire.HardwareAddr, error)
	// Update records a learned mapping.
	Update(device int, addr netip.Addr, hardwareAddr wire.HardwareAddr) error
}

// Transmitter sends frames out of a device.
type Transmitter interface {
	Transmit(device int, frame []byte) error
}

// Option is a function that configures the engine.
type Option func(*options)

// WithLog configures the engine with a logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

// WithMetrics configures the engine with metrics.
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

// Engine decides the fate of every frame received by the router.
//
// It keeps no per-frame state; everything that outlives a frame lives in
// the resolver.
type Engine struct {
	ports    [2]*device.Port
	nextHop  netip.Addr
	resolver Resolver
	tx       Transmitter
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

// NewEngine creates a forwarding engine between two ports.
//
// Destinations outside both directly connected networks are sent to
// nextHop.
func NewEngine(
	ports [2]*device.Port,
	nextHop netip.Addr,
	resolver Resolver,
	tx Transmitter,
	options ...Option,
) *Engine {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	return &Engine{
		ports:    ports,
		nextHop:  nextHop,
		resolver: resolver,
		tx:       tx,
		metrics:  opts.Metrics,
		log:      opts.Log,
	}
}

// Process handles a frame received on the device.
//
// When the verdict is retained, the frame must not be modified or reused
// by the caller.
func (m *Engine) Process(device int, frame []byte) (Verdict, error) {
	verdict, err := m.process(device, frame)

	m.metrics.FramesTotal.WithLabelValues(strconv.Itoa(device), verdict.String()).Inc()
	if verdict == Drop {
		m.metrics.DropsTotal.WithLabelValues(dropReason(err)).Inc()
	}
	return verdict, err
}

func (m *Engine) process(device int, frame []byte) (Verdict, error) {
	port := m.ports[device]

	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		return Drop, err
	}
	if eth.Dst != port.HardwareAddr {
		return Drop, fmt.Errorf("%s on %s: %w", eth.Dst, port.Name, ErrNotForUs)
	}

	switch eth.Type {
	case wire.EtherTypeARP:
		return m.processARP(device, frame[wire.EthernetHeaderLen:])
	case wire.EtherTypeIPv4:
		return m.processIPv4(device, eth, frame)
	default:
		return Ignore, nil
	}
}

func (m *Engine) processARP(device int, b []byte) (Verdict, error) {
	arp, err := wire.ParseARP(b)
	if err != nil {
		m.log.Debugw("malformed ARP packet", zap.Int("device", device), zap.Error(err))
		return Drop, err
	}

	if arp.Op != wire.ARPRequest && arp.Op != wire.ARPReply {
		return Ignore, nil
	}
	// Address probes carry no mapping.
	if arp.SenderIP.IsUnspecified() {
		return Ignore, nil
	}

	// The sender is reachable through the device the packet came from.
	if err := m.resolver.Update(device, arp.SenderIP, arp.SenderHW); err != nil {
		return Drop, fmt.Errorf("failed to learn %s: %w", arp.SenderIP, err)
	}

	m.log.Debugw("learned neighbour",
		zap.Int("device", device),
		zap.Stringer("op", arp.Op),
		zap.Stringer("addr", arp.SenderIP),
		zap.Stringer("hardware_addr", arp.SenderHW),
	)
	return Learn, nil
}

func (m *Engine) processIPv4(device int, eth wire.Ethernet, frame []byte) (Verdict, error) {
	ip, err := wire.ParseIPv4(frame[wire.EthernetHeaderLen:])
	if err != nil {
		m.log.Debugw("malformed IPv4 packet", zap.Int("device", device), zap.Error(err))
		return Drop, err
	}

	if !ip.ValidChecksum() {
		m.log.Warnw("dropped IPv4 packet with bad checksum",
			zap.Int("device", device),
			zap.Stringer("src", ip.Src),
			zap.Stringer("dst", ip.Dst),
		)
		return Drop, fmt.Errorf("%s -> %s: %w", ip.Src, ip.Dst, ErrBadChecksum)
	}

	port := m.ports[device]
	if ip.TTL <= 1 {
		reply := wire.NewTimeExceeded(port.HardwareAddr, port.Addr, frame, eth, ip)
		if err := m.transmit(device, reply); err != nil {
			return Drop, err
		}

		m.log.Debugw("sent time exceeded",
			zap.Int("device", device),
			zap.Stringer("to", ip.Src),
		)
		return TimeExceeded, nil
	}

	if ip.Dst == port.Addr {
		return Local, nil
	}

	egress := 1 - device
	out := m.ports[egress]

	target := m.nextHop
	if out.OnLink(ip.Dst) {
		if ip.Dst == out.Addr {
			return Local, nil
		}
		target = ip.Dst
	}

	hw, err := m.resolver.Resolve(egress, target, frame)
	switch {
	case err == nil:
	case errors.Is(err, neigh.ErrNotReady):
		return Queue, nil
	default:
		return Drop, fmt.Errorf("failed to resolve %s on %s: %w", target, out.Name, err)
	}

	ip.Forward(frame, hw, out.HardwareAddr)
	if err := m.transmit(egress, frame); err != nil {
		return Drop, err
	}
	return Forward, nil
}

func (m *Engine) transmit(device int, frame []byte) error {
	label := strconv.Itoa(device)

	if err := m.tx.Transmit(device, frame); err != nil {
		m.metrics.TransmitErrorsTotal.WithLabelValues(label).Inc()
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	m.metrics.TransmittedTotal.WithLabelValues(label).Inc()
	return nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrNotForUs):
		return "not_for_us"
	case errors.Is(err, ErrBadChecksum):
		return "bad_checksum"
	case errors.Is(err, ErrTransmit):
		return "transmit"
	case errors.Is(err, wire.ErrTooShort):
		return "too_short"
	case errors.Is(err, wire.ErrOptionsTooLong):
		return "options_too_long"
	case errors.Is(err, wire.ErrBadVersion):
		return "bad_version"
	case errors.Is(err, wire.ErrBadHeaderLength):
		return "bad_header_length"
	case errors.Is(err, wire.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, neigh.ErrCacheFull):
		return "cache_full"
	case errors.Is(err, neigh.ErrQueueFull):
		return "queue_full"
	default:
		return "other"
	}
}
