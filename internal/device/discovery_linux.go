package device

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
)

// Discover reads the hardware address and the first IPv4 address of the
// named interface.
func Discover(index int, name string) (*Port, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find link %q: %w", name, err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list IPv4 addresses of %q: %w", name, err)
	}
	if len(addrs) == 0 || addrs[0].IPNet == nil {
		return nil, fmt.Errorf("link %q has no IPv4 address", name)
	}

	ipNet := addrs[0].IPNet
	addr, ok := netip.AddrFromSlice(ipNet.IP.To4())
	if !ok {
		return nil, fmt.Errorf("link %q has invalid IPv4 address %q", name, ipNet.IP)
	}

	attrs := link.Attrs()
	return NewPort(index, name, attrs.Index, attrs.HardwareAddr, addr, ipNet.Mask)
}
