package resolver

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yanet-platform/yarouter/common/go/xpacket"
	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/metrics"
	"github.com/yanet-platform/yarouter/internal/neigh"
	"github.com/yanet-platform/yarouter/internal/wire"
)

var (
	hostMAC   = xpacket.MustParseMAC("02:00:00:00:00:02")
	port0MAC  = xpacket.MustParseMAC("02:00:00:00:00:01")
	port1MAC  = xpacket.MustParseMAC("02:00:00:00:01:01")
	serverMAC = xpacket.MustParseMAC("02:00:00:00:01:09")

	server = netip.MustParseAddr("10.1.0.9")
)

type sent struct {
	Device int
	Frame  []byte
}

type transmitterMock struct {
	mu   sync.Mutex
	sent []sent
}

func (m *transmitterMock) Transmit(device int, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sent{Device: device, Frame: append([]byte(nil), frame...)})
	return nil
}

func (m *transmitterMock) Sent() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]sent(nil), m.sent...)
}

// ARPRequests returns the target addresses of transmitted ARP requests.
func (m *transmitterMock) ARPRequests() []netip.Addr {
	out := []netip.Addr{}
	for _, s := range m.Sent() {
		eth, err := wire.ParseEthernet(s.Frame)
		if err != nil || eth.Type != wire.EtherTypeARP {
			continue
		}
		arp, err := wire.ParseARP(s.Frame[wire.EthernetHeaderLen:])
		if err != nil {
			continue
		}
		out = append(out, arp.TargetIP)
	}
	return out
}

type clockMock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *clockMock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *clockMock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

type setup struct {
	daemon  *Daemon
	cache   *neigh.Cache
	tx      *transmitterMock
	clock   *clockMock
	metrics *metrics.Metrics
}

func mustPort(t *testing.T, index int, name string, hw net.HardwareAddr, addr string) *device.Port {
	port, err := device.NewPort(index, name, index+2, hw, netip.MustParseAddr(addr), net.CIDRMask(24, 32))
	require.NoError(t, err)
	return port
}

func newSetup(t *testing.T, cfg *Config) *setup {
	t.Helper()

	log := zaptest.NewLogger(t).Sugar()
	ports := [2]*device.Port{
		mustPort(t, 0, "eth1", port0MAC, "10.0.0.1"),
		mustPort(t, 1, "eth2", port1MAC, "10.1.0.1"),
	}
	clock := &clockMock{now: time.Unix(1700000000, 0)}
	tx := &transmitterMock{}
	m := metrics.New(nil)

	prober := NewProber(ports, tx, WithLog(log), WithMetrics(m))
	cache, err := neigh.NewCache(neigh.DefaultConfig(), prober,
		neigh.WithLog(log),
		neigh.WithClock(clock.Now),
		neigh.WithBackOff(cfg.Backoff.NewBackOff),
	)
	require.NoError(t, err)

	daemon, err := NewDaemon(cfg, cache, ports, tx, prober,
		WithLog(log),
		WithMetrics(m),
		WithClock(clock.Now),
	)
	require.NoError(t, err)

	return &setup{
		daemon:  daemon,
		cache:   cache,
		tx:      tx,
		clock:   clock,
		metrics: m,
	}
}

func udpFrame(t *testing.T, srcMAC net.HardwareAddr, dstMAC net.HardwareAddr, ttl uint8, payload string) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 2),
		DstIP:    server.AsSlice(),
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 6000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	return xpacket.LayersToFrame(t,
		&layers.Ethernet{
			SrcMAC:       srcMAC,
			DstMAC:       dstMAC,
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip,
		udp,
		gopacket.Payload([]byte(payload)),
	)
}

func TestNewDaemonInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backoff.Multiplier = 0.5

	_, err := NewDaemon(cfg, nil, [2]*device.Port{}, &transmitterMock{}, nil)
	require.Error(t, err)
}

func TestSweepFlushesInOrder(t *testing.T) {
	s := newSetup(t, DefaultConfig())

	payloads := []string{"first", "second", "third"}
	for _, payload := range payloads {
		_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, payload))
		require.ErrorIs(t, err, neigh.ErrNotReady)
	}
	require.Equal(t, []netip.Addr{server}, s.tx.ARPRequests())

	hw, ok := wire.HardwareAddrFrom(serverMAC)
	require.True(t, ok)
	require.NoError(t, s.cache.Update(1, server, hw))

	stats := s.daemon.Sweep(s.clock.Now())
	require.Equal(t, SweepStats{Flushed: 3}, stats)

	want := []sent{}
	for _, payload := range payloads {
		want = append(want, sent{Device: 1, Frame: udpFrame(t, port1MAC, serverMAC, 63, payload)})
	}
	// Skip the ARP request.
	if diff := cmp.Diff(want, s.tx.Sent()[1:]); diff != "" {
		t.Fatalf("flushed frames mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 3.0, testutil.ToFloat64(s.metrics.FlushedTotal))

	// The next frame goes directly.
	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "fourth"))
	require.NoError(t, err)
}

func TestSweepRetriesAreBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PendingTTL = time.Minute
	s := newSetup(t, cfg)

	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "lost"))
	require.ErrorIs(t, err, neigh.ErrNotReady)

	total := SweepStats{}
	for range 200 {
		stats := s.daemon.Sweep(s.clock.Advance(cfg.TickInterval))
		total.Probed += stats.Probed
		total.Failed += stats.Failed
		total.Discarded += stats.Discarded
	}

	require.Equal(t, SweepStats{Probed: cfg.MaxRetries, Failed: 1, Discarded: 1}, total)
	// The initial request and every retransmission.
	require.Len(t, s.tx.ARPRequests(), 1+cfg.MaxRetries)
	require.Zero(t, s.cache.Len())
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.ReleasedTotal.WithLabelValues("failed")))
}

func TestSweepRetransmitsWithBackoff(t *testing.T) {
	s := newSetup(t, DefaultConfig())

	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "x"))
	require.ErrorIs(t, err, neigh.ErrNotReady)
	start := s.clock.Now()

	probedAt := []time.Duration{}
	for range 40 {
		now := s.clock.Advance(50 * time.Millisecond)
		if s.daemon.Sweep(now).Probed > 0 {
			probedAt = append(probedAt, now.Sub(start))
		}
	}

	require.Equal(t, []time.Duration{
		250 * time.Millisecond,
		750 * time.Millisecond,
		1750 * time.Millisecond,
	}, probedAt)
}

func TestSweepPendingExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 100
	s := newSetup(t, cfg)

	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "a"))
	require.ErrorIs(t, err, neigh.ErrNotReady)
	_, err = s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "b"))
	require.ErrorIs(t, err, neigh.ErrNotReady)

	stats := s.daemon.Sweep(s.clock.Advance(cfg.PendingTTL + time.Millisecond))
	require.Equal(t, SweepStats{Expired: 1, Discarded: 2}, stats)
	require.Zero(t, s.cache.Len())

	// A later frame starts a fresh resolution.
	_, err = s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "c"))
	require.ErrorIs(t, err, neigh.ErrNotReady)

	snapshot, ok := s.cache.Lookup(1, server)
	require.True(t, ok)
	require.Equal(t, neigh.Pending, snapshot.State)
	require.Equal(t, 1, snapshot.Queued)
	require.Zero(t, snapshot.Probes)
	require.Len(t, s.tx.ARPRequests(), 2)
}

func TestSweepResolvedExpiry(t *testing.T) {
	s := newSetup(t, DefaultConfig())

	hw, ok := wire.HardwareAddrFrom(serverMAC)
	require.True(t, ok)
	require.NoError(t, s.cache.Update(1, server, hw))

	require.Equal(t, SweepStats{}, s.daemon.Sweep(s.clock.Advance(30*time.Second)))

	// Confirmation restarts the lifetime.
	require.NoError(t, s.cache.Update(1, server, hw))
	require.Equal(t, SweepStats{}, s.daemon.Sweep(s.clock.Advance(59*time.Second)))

	require.Equal(t, SweepStats{Expired: 1}, s.daemon.Sweep(s.clock.Advance(2*time.Second)))
	require.Zero(t, s.cache.Len())
}

func TestSweepFlushesBeforeExpiry(t *testing.T) {
	s := newSetup(t, DefaultConfig())

	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "late"))
	require.ErrorIs(t, err, neigh.ErrNotReady)

	hw, ok := wire.HardwareAddrFrom(serverMAC)
	require.True(t, ok)
	require.NoError(t, s.cache.Update(1, server, hw))

	stats := s.daemon.Sweep(s.clock.Advance(2 * time.Minute))
	require.Equal(t, SweepStats{Flushed: 1, Expired: 1}, stats)
}

func TestRunFlushesOnNotify(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Hour
	s := newSetup(t, cfg)

	_, err := s.cache.Resolve(1, server, udpFrame(t, hostMAC, port0MAC, 64, "wake"))
	require.ErrorIs(t, err, neigh.ErrNotReady)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.daemon.Run(ctx)
	}()

	hw, ok := wire.HardwareAddrFrom(serverMAC)
	require.True(t, ok)
	require.NoError(t, s.cache.Update(1, server, hw))

	require.Eventually(t, func() bool {
		return len(s.tx.Sent()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
