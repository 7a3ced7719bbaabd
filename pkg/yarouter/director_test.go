package yarouter

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/yanet-platform/yarouter/common/go/xpacket"
	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/neigh"
)

var (
	hostMAC   = xpacket.MustParseMAC("02:00:00:00:00:02")
	port0MAC  = xpacket.MustParseMAC("02:00:00:00:00:01")
	port1MAC  = xpacket.MustParseMAC("02:00:00:00:01:01")
	serverMAC = xpacket.MustParseMAC("02:00:00:00:01:09")
)

type fdLink struct {
	fd int
}

func (m *fdLink) Fd() int {
	return m.fd
}

func (m *fdLink) Read(b []byte) (int, error) {
	return unix.Read(m.fd, b)
}

func (m *fdLink) Write(b []byte) (int, error) {
	return unix.Write(m.fd, b)
}

func (m *fdLink) Close() error {
	return unix.Close(m.fd)
}

// linkPair returns the router side of a link and the fd of the wire side.
func linkPair(t *testing.T) (*fdLink, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[1])
	})
	return &fdLink{fd: fds[0]}, fds[1]
}

func readFrame(t *testing.T, fd int) gopacket.Packet {
	t.Helper()

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 5000)
	require.NoError(t, err)
	require.Equal(t, 1, n, "no frame within timeout")

	buf := make([]byte, 2048)
	n, err = unix.Read(fd, buf)
	require.NoError(t, err)

	pkt := xpacket.ParseEtherPacket(buf[:n])
	require.Nil(t, pkt.ErrorLayer())
	return pkt
}

func writeFrame(t *testing.T, fd int, lyrs ...gopacket.SerializableLayer) {
	t.Helper()

	_, err := unix.Write(fd, xpacket.LayersToFrame(t, lyrs...))
	require.NoError(t, err)
}

func TestDirectorRoutesThroughResolution(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	port0, err := device.NewPort(0, "eth1", 2, port0MAC, netip.MustParseAddr("10.0.0.1"), net.CIDRMask(24, 32))
	require.NoError(t, err)
	port1, err := device.NewPort(1, "eth2", 3, port1MAC, netip.MustParseAddr("10.1.0.1"), net.CIDRMask(24, 32))
	require.NoError(t, err)

	link0, wire0 := linkPair(t)
	link1, wire1 := linkPair(t)

	cfg := DefaultConfig()
	cfg.Mux.PollTimeout = 10 * time.Millisecond
	cfg.Resolver.TickInterval = 10 * time.Millisecond

	director, err := newDirector(cfg, [2]*device.Port{port0, port1}, [2]Link{link0, link1}, &options{Log: log})
	require.NoError(t, err)
	defer director.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- director.Run(ctx)
	}()

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 2),
		DstIP:    net.IPv4(10, 1, 0, 9),
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 6000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	writeFrame(t, wire0,
		&layers.Ethernet{SrcMAC: hostMAC, DstMAC: port0MAC, EthernetType: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload([]byte("query")),
	)

	// The router asks for the server first.
	pkt := readFrame(t, wire1)
	arp := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	require.Equal(t, uint16(layers.ARPRequest), arp.Operation)
	require.Equal(t, []byte{10, 1, 0, 1}, arp.SourceProtAddress)
	require.Equal(t, []byte{10, 1, 0, 9}, arp.DstProtAddress)

	writeFrame(t, wire1,
		&layers.Ethernet{SrcMAC: serverMAC, DstMAC: port1MAC, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPReply,
			SourceHwAddress:   serverMAC,
			SourceProtAddress: []byte{10, 1, 0, 9},
			DstHwAddress:      port1MAC,
			DstProtAddress:    []byte{10, 1, 0, 1},
		},
	)

	// Then the queued frame follows, rewritten for the server. Skip ARP
	// retransmissions that might have raced with the reply.
	pkt = readFrame(t, wire1)
	for pkt.Layer(layers.LayerTypeARP) != nil {
		pkt = readFrame(t, wire1)
	}
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.Equal(t, serverMAC, eth.DstMAC)
	require.Equal(t, port1MAC, eth.SrcMAC)
	forwarded := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.Equal(t, uint8(63), forwarded.TTL)
	require.Equal(t, []byte("query"), pkt.ApplicationLayer().Payload())

	snapshot, ok := director.Cache().Lookup(1, netip.MustParseAddr("10.1.0.9"))
	require.True(t, ok)
	require.Equal(t, neigh.Resolved, snapshot.State)

	count, err := testutil.GatherAndCount(director.registry, "yarouter_resolution_entries")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
