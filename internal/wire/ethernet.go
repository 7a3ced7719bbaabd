package wire

import (
	"encoding/binary"
	"fmt"
)

// EthernetHeaderLen is the length of an Ethernet II header.
const EthernetHeaderLen = 14

// EtherType is the type field of an Ethernet II header.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

func (m EtherType) String() string {
	switch m {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	default:
		return fmt.Sprintf("0x%04x", uint16(m))
	}
}

// Ethernet is a decoded Ethernet II header.
type Ethernet struct {
	Dst  HardwareAddr
	Src  HardwareAddr
	Type EtherType
}

// ParseEthernet decodes the Ethernet header at the beginning of the frame.
func ParseEthernet(b []byte) (Ethernet, error) {
	if len(b) < EthernetHeaderLen {
		return Ethernet{}, fmt.Errorf("ethernet header: %d < %d: %w", len(b), EthernetHeaderLen, ErrTooShort)
	}

	h := Ethernet{
		Dst:  HardwareAddr(b[0:6]),
		Src:  HardwareAddr(b[6:12]),
		Type: EtherType(binary.BigEndian.Uint16(b[12:14])),
	}
	return h, nil
}

// Put encodes the header into the first EthernetHeaderLen bytes of b.
func (m Ethernet) Put(b []byte) {
	copy(b[0:6], m.Dst[:])
	copy(b[6:12], m.Src[:])
	binary.BigEndian.PutUint16(b[12:14], uint16(m.Type))
}
