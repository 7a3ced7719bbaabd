package device

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// RawSocket is an AF_PACKET socket bound to a single interface, receiving
// and sending whole Ethernet frames of every ethertype.
type RawSocket struct {
	fd   int
	name string
}

// OpenRawSocket opens a raw socket on the port's interface, optionally
// switching the interface into promiscuous mode.
func OpenRawSocket(port *Port, promisc bool) (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket for %q: %w", port.Name, err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  port.LinkIndex,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind raw socket to %q: %w", port.Name, err)
	}

	if promisc {
		link, err := netlink.LinkByIndex(port.LinkIndex)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to find link %q: %w", port.Name, err)
		}
		if err := netlink.SetPromiscOn(link); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to enable promiscuous mode on %q: %w", port.Name, err)
		}
	}

	m := &RawSocket{
		fd:   fd,
		name: port.Name,
	}
	return m, nil
}

// Name returns the interface name.
func (m *RawSocket) Name() string {
	return m.name
}

// Fd returns the socket file descriptor.
func (m *RawSocket) Fd() int {
	return m.fd
}

// Read receives a single frame.
func (m *RawSocket) Read(b []byte) (int, error) {
	return unix.Read(m.fd, b)
}

// Write sends a single frame.
func (m *RawSocket) Write(b []byte) (int, error) {
	return unix.Write(m.fd, b)
}

// Close closes the socket.
func (m *RawSocket) Close() error {
	return unix.Close(m.fd)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
