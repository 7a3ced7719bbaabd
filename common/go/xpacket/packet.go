package xpacket

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// MustParseMAC parses an EUI-48 address or panics.
func MustParseMAC(s string) net.HardwareAddr {
	addr, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// LayersToFrame serializes the given layers into a raw Ethernet frame with
// lengths and checksums fixed up.
func LayersToFrame(t *testing.T, lyrs ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, lyrs...))

	// The serialize buffer is reused by gopacket, so detach the bytes.
	return append([]byte(nil), buf.Bytes()...)
}

// LayersToPacket serializes the given layers and parses them back, failing
// the test if gopacket reports a decoding error.
func LayersToPacket(t *testing.T, lyrs ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()

	pkt := ParseEtherPacket(LayersToFrame(t, lyrs...))
	require.Empty(t, pkt.ErrorLayer(), "%#+v", lyrs)
	return pkt
}

// ParseEtherPacket decodes a raw Ethernet frame.
func ParseEtherPacket(data []byte) gopacket.Packet {
	// Pad the packet with zero bytes to align its size at 60 bytes
	// https://github.com/google/gopacket/issues/361
	if len(data) < 60 {
		var zeros [60]byte
		data = append(data[:len(data):len(data)], zeros[:60-len(data)]...)
	}

	return gopacket.NewPacket(
		data,
		layers.LayerTypeEthernet,
		gopacket.Default,
	)
}
