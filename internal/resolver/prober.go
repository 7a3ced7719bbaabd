package resolver

import (
	"fmt"
	"net/netip"
	"strconv"

	"go.uber.org/zap"

	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/metrics"
	"github.com/yanet-platform/yarouter/internal/wire"
)

// Transmitter sends frames out of a device.
type Transmitter interface {
	Transmit(device int, frame []byte) error
}

// Prober broadcasts ARP requests from the router ports.
type Prober struct {
	ports   [2]*device.Port
	tx      Transmitter
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

// NewProber creates a new ARP prober.
func NewProber(ports [2]*device.Port, tx Transmitter, options ...Option) *Prober {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	return &Prober{
		ports:   ports,
		tx:      tx,
		metrics: opts.Metrics,
		log:     opts.Log,
	}
}

// SendRequest asks who has addr on the device, using the port's own
// addresses as the sender.
func (m *Prober) SendRequest(device int, addr netip.Addr) error {
	port := m.ports[device]
	frame := wire.NewARPRequest(port.HardwareAddr, port.Addr, addr)

	if err := m.tx.Transmit(device, frame); err != nil {
		return fmt.Errorf("failed to send ARP request for %s on %s: %w", addr, port.Name, err)
	}
	m.metrics.ARPRequestsTotal.WithLabelValues(strconv.Itoa(device)).Inc()

	m.log.Debugw("sent ARP request",
		zap.String("device", port.Name),
		zap.Stringer("addr", addr),
	)
	return nil
}
