package wire

import (
	"net"
	"net/netip"
)

// HardwareAddrLen is the length of an EUI-48 hardware address.
const HardwareAddrLen = 6

// HardwareAddr is an EUI-48 hardware address.
type HardwareAddr [HardwareAddrLen]byte

// Broadcast is the Ethernet broadcast address.
var Broadcast = HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// HardwareAddrFrom converts a net.HardwareAddr into a HardwareAddr.
//
// Returns false if the address is not EUI-48.
func HardwareAddrFrom(addr net.HardwareAddr) (HardwareAddr, bool) {
	var m HardwareAddr
	if len(addr) != HardwareAddrLen {
		return m, false
	}
	copy(m[:], addr)
	return m, true
}

// IsZero reports whether the address is all zeroes.
func (m HardwareAddr) IsZero() bool {
	return m == HardwareAddr{}
}

func (m HardwareAddr) String() string {
	return net.HardwareAddr(m[:]).String()
}

func addrFrom4(b []byte) netip.Addr {
	return netip.AddrFrom4([4]byte(b[:4]))
}

func putAddr4(b []byte, addr netip.Addr) {
	a := addr.As4()
	copy(b[:4], a[:])
}
