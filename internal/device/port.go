package device

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/yanet-platform/yarouter/common/go/xnetip"
	"github.com/yanet-platform/yarouter/internal/wire"
)

// Port is the static addressing of one router interface.
type Port struct {
	// Index is the router-local device index, 0 or 1.
	Index int
	// Name is the kernel interface name.
	Name string
	// LinkIndex is the kernel interface index.
	LinkIndex int
	// HardwareAddr is the interface hardware address.
	HardwareAddr wire.HardwareAddr
	// Addr is the interface IPv4 address.
	Addr netip.Addr
	// Subnet is the directly connected network.
	Subnet xnetip.NetWithMask
}

// NewPort creates a port from interface properties.
func NewPort(index int, name string, linkIndex int, hardwareAddr net.HardwareAddr, addr netip.Addr, mask net.IPMask) (*Port, error) {
	hw, ok := wire.HardwareAddrFrom(hardwareAddr)
	if !ok {
		return nil, fmt.Errorf("interface %q has unsupported hardware address %q", name, hardwareAddr)
	}

	addr = addr.Unmap()
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	subnet, err := xnetip.NewNetWithMask(addr, mask)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}

	m := &Port{
		Index:        index,
		Name:         name,
		LinkIndex:    linkIndex,
		HardwareAddr: hw,
		Addr:         addr,
		Subnet:       subnet,
	}
	return m, nil
}

// OnLink reports whether addr belongs to the directly connected network.
func (m *Port) OnLink(addr netip.Addr) bool {
	return m.Subnet.Contains(addr)
}

func (m *Port) String() string {
	return fmt.Sprintf("%s(%s %s %s)", m.Name, m.HardwareAddr, m.Addr, m.Subnet)
}
