package xnetip

import (
	"fmt"
	"net"
	"net/netip"
)

// NetWithMask represents an IPv4 network address with an arbitrary netmask,
// as reported by the interface configuration.
//
// Unlike netip.Prefix, this supports non-contiguous masks
// (e.g., 255.255.0.255).
type NetWithMask struct {
	Addr netip.Addr
	Mask net.IPMask
}

// NewNetWithMask creates a NetWithMask from an address and mask.
//
// The address is masked, so any host address within the network can be
// passed. Returns an error if the address is not IPv4 or the mask length
// doesn't match.
func NewNetWithMask(addr netip.Addr, mask net.IPMask) (NetWithMask, error) {
	if !addr.Is4() {
		return NetWithMask{}, fmt.Errorf("address %s is not IPv4", addr)
	}
	if len(mask) != net.IPv4len {
		return NetWithMask{}, fmt.Errorf(
			"mask length %d doesn't match address type (expected %d)",
			len(mask), net.IPv4len,
		)
	}

	return NetWithMask{Addr: applyMask(addr, mask), Mask: mask}, nil
}

// FromIPNet creates a NetWithMask from a net.IPNet, the form in which
// netlink reports interface addresses.
func FromIPNet(ipNet *net.IPNet) (NetWithMask, error) {
	if ipNet == nil {
		return NetWithMask{}, fmt.Errorf("nil network")
	}

	addr, ok := netip.AddrFromSlice(ipNet.IP)
	if !ok {
		return NetWithMask{}, fmt.Errorf("invalid address %q", ipNet.IP)
	}

	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}

	return NewNetWithMask(addr.Unmap(), mask)
}

// FromPrefix creates a NetWithMask from an IPv4 netip.Prefix.
func FromPrefix(prefix netip.Prefix) NetWithMask {
	return NetWithMask{
		Addr: prefix.Masked().Addr(),
		Mask: net.CIDRMask(prefix.Bits(), net.IPv4len*8),
	}
}

// Contains reports whether the given address belongs to this network, i.e.
// whether "addr & mask == network".
func (n NetWithMask) Contains(addr netip.Addr) bool {
	if !n.IsValid() || !addr.Is4() {
		return false
	}

	return applyMask(addr, n.Mask) == n.Addr
}

// IsValid returns true if the NetWithMask is valid (IPv4 address and mask).
func (n NetWithMask) IsValid() bool {
	return n.Addr.Is4() && len(n.Mask) == net.IPv4len
}

// ToPrefix attempts to convert NetWithMask to netip.Prefix.
// Returns an error if the mask is not a valid contiguous prefix mask.
func (n NetWithMask) ToPrefix() (netip.Prefix, error) {
	ones, bits := n.Mask.Size()
	if bits == 0 {
		return netip.Prefix{}, fmt.Errorf("mask is not a valid prefix (non-contiguous bits)")
	}

	prefix, err := n.Addr.Prefix(ones)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("failed to create prefix: %w", err)
	}

	return prefix, nil
}

// String returns a string representation of the NetWithMask.
//
// Format: "addr/bits" for contiguous masks, "addr/mask" in dotted decimal
// otherwise.
func (n NetWithMask) String() string {
	if !n.IsValid() {
		return "invalid"
	}

	if prefix, err := n.ToPrefix(); err == nil {
		return prefix.String()
	}

	return fmt.Sprintf("%s/%s", n.Addr, net.IP(n.Mask))
}

func applyMask(addr netip.Addr, mask net.IPMask) netip.Addr {
	a := addr.As4()
	for i := range a {
		a[i] &= mask[i]
	}
	return netip.AddrFrom4(a)
}
