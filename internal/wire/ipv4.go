package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	// IPv4HeaderLen is the length of the fixed part of an IPv4 header.
	IPv4HeaderLen = 20
	// MaxOptionsLen bounds the IPv4 option area a frame may declare.
	MaxOptionsLen = 1500
)

// IPProtocol is the IPv4 protocol field.
type IPProtocol uint8

const (
	IPProtocolICMP IPProtocol = 1
	IPProtocolTCP  IPProtocol = 6
	IPProtocolUDP  IPProtocol = 17
)

// IPv4 is a decoded IPv4 header.
type IPv4 struct {
	Version  uint8
	IHL      uint8
	TOS      uint8
	TotalLen uint16
	ID       uint16
	FragOff  uint16
	TTL      uint8
	Protocol IPProtocol
	Checksum uint16
	Src      netip.Addr
	Dst      netip.Addr

	// Header aliases the fixed header bytes of the decoded buffer.
	Header []byte
	// Options is a copy of the option area, empty when IHL is 5.
	Options []byte
}

// ParseIPv4 decodes an IPv4 header together with its options.
func ParseIPv4(b []byte) (IPv4, error) {
	if len(b) < IPv4HeaderLen {
		return IPv4{}, fmt.Errorf("ipv4 header: %d < %d: %w", len(b), IPv4HeaderLen, ErrTooShort)
	}

	h := IPv4{
		Version:  b[0] >> 4,
		IHL:      b[0] & 0x0f,
		TOS:      b[1],
		TotalLen: binary.BigEndian.Uint16(b[2:4]),
		ID:       binary.BigEndian.Uint16(b[4:6]),
		FragOff:  binary.BigEndian.Uint16(b[6:8]),
		TTL:      b[8],
		Protocol: IPProtocol(b[9]),
		Checksum: binary.BigEndian.Uint16(b[10:12]),
		Src:      addrFrom4(b[12:16]),
		Dst:      addrFrom4(b[16:20]),
		Header:   b[:IPv4HeaderLen:IPv4HeaderLen],
	}
	if h.Version != 4 {
		return IPv4{}, fmt.Errorf("ipv4 header: version %d: %w", h.Version, ErrBadVersion)
	}

	optionsLen := int(h.IHL)*4 - IPv4HeaderLen
	if optionsLen < 0 {
		return IPv4{}, fmt.Errorf("ipv4 header: ihl %d: %w", h.IHL, ErrBadHeaderLength)
	}
	if optionsLen >= MaxOptionsLen {
		return IPv4{}, fmt.Errorf("ipv4 options: %d: %w", optionsLen, ErrOptionsTooLong)
	}
	if len(b) < IPv4HeaderLen+optionsLen {
		return IPv4{}, fmt.Errorf("ipv4 options: %d < %d: %w", len(b)-IPv4HeaderLen, optionsLen, ErrTooShort)
	}
	if optionsLen > 0 {
		h.Options = append([]byte(nil), b[IPv4HeaderLen:IPv4HeaderLen+optionsLen]...)
	}

	return h, nil
}

// Len returns the full header length including options.
func (m *IPv4) Len() int {
	return IPv4HeaderLen + len(m.Options)
}

// ValidChecksum verifies the header checksum over the header and options.
func (m *IPv4) ValidChecksum() bool {
	return ValidChecksum(Checksum2(m.Header, m.Options))
}

// Forward rewrites the frame in place for the next hop: Ethernet addresses
// are replaced, TTL is decremented and the header checksum is recomputed
// over the header and options.
//
// The header must have been decoded from this frame.
func (m *IPv4) Forward(frame []byte, dst HardwareAddr, src HardwareAddr) {
	copy(frame[0:6], dst[:])
	copy(frame[6:12], src[:])

	m.TTL--
	m.Header[8] = m.TTL
	m.Header[10], m.Header[11] = 0, 0
	m.Checksum = Checksum2(m.Header, m.Options)
	binary.BigEndian.PutUint16(m.Header[10:12], m.Checksum)
}

// putHeader encodes a fixed 20-byte header without options and fills its
// checksum.
func (m *IPv4) putHeader(b []byte) {
	b[0] = 4<<4 | 5
	b[1] = m.TOS
	binary.BigEndian.PutUint16(b[2:4], m.TotalLen)
	binary.BigEndian.PutUint16(b[4:6], m.ID)
	binary.BigEndian.PutUint16(b[6:8], m.FragOff)
	b[8] = m.TTL
	b[9] = uint8(m.Protocol)
	b[10], b[11] = 0, 0
	putAddr4(b[12:16], m.Src)
	putAddr4(b[16:20], m.Dst)
	binary.BigEndian.PutUint16(b[10:12], Checksum(b[:IPv4HeaderLen]))
}

// ForwardFrame decodes the IPv4 header of an Ethernet frame and rewrites the
// frame for the next hop as IPv4.Forward does.
func ForwardFrame(frame []byte, dst HardwareAddr, src HardwareAddr) error {
	if len(frame) < EthernetHeaderLen {
		return fmt.Errorf("ethernet header: %d < %d: %w", len(frame), EthernetHeaderLen, ErrTooShort)
	}

	ip, err := ParseIPv4(frame[EthernetHeaderLen:])
	if err != nil {
		return err
	}
	ip.Forward(frame, dst, src)
	return nil
}
