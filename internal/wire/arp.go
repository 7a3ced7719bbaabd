package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// ARPLen is the length of an Ethernet/IPv4 ARP body.
const ARPLen = 28

const (
	arpHardwareEthernet = 1
	arpProtocolIPv4     = uint16(EtherTypeIPv4)
)

// ARPOp is an ARP operation code.
type ARPOp uint16

const (
	ARPRequest ARPOp = 1
	ARPReply   ARPOp = 2
)

func (m ARPOp) String() string {
	switch m {
	case ARPRequest:
		return "request"
	case ARPReply:
		return "reply"
	default:
		return fmt.Sprintf("op(%d)", uint16(m))
	}
}

// ARP is a decoded Ethernet/IPv4 ARP packet.
type ARP struct {
	HardwareType uint16
	ProtocolType uint16
	HardwareLen  uint8
	ProtocolLen  uint8
	Op           ARPOp
	SenderHW     HardwareAddr
	SenderIP     netip.Addr
	TargetHW     HardwareAddr
	TargetIP     netip.Addr
}

// ParseARP decodes an ARP body.
func ParseARP(b []byte) (ARP, error) {
	if len(b) < ARPLen {
		return ARP{}, fmt.Errorf("arp: %d < %d: %w", len(b), ARPLen, ErrTooShort)
	}

	p := ARP{
		HardwareType: binary.BigEndian.Uint16(b[0:2]),
		ProtocolType: binary.BigEndian.Uint16(b[2:4]),
		HardwareLen:  b[4],
		ProtocolLen:  b[5],
		Op:           ARPOp(binary.BigEndian.Uint16(b[6:8])),
	}
	if p.HardwareType != arpHardwareEthernet || p.ProtocolType != arpProtocolIPv4 ||
		p.HardwareLen != HardwareAddrLen || p.ProtocolLen != 4 {
		return ARP{}, fmt.Errorf("arp: htype=%d ptype=0x%04x hlen=%d plen=%d: %w",
			p.HardwareType, p.ProtocolType, p.HardwareLen, p.ProtocolLen, ErrUnsupported)
	}

	p.SenderHW = HardwareAddr(b[8:14])
	p.SenderIP = addrFrom4(b[14:18])
	p.TargetHW = HardwareAddr(b[18:24])
	p.TargetIP = addrFrom4(b[24:28])
	return p, nil
}

// Put encodes the packet into the first ARPLen bytes of b.
func (m ARP) Put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], m.HardwareType)
	binary.BigEndian.PutUint16(b[2:4], m.ProtocolType)
	b[4] = m.HardwareLen
	b[5] = m.ProtocolLen
	binary.BigEndian.PutUint16(b[6:8], uint16(m.Op))
	copy(b[8:14], m.SenderHW[:])
	putAddr4(b[14:18], m.SenderIP)
	copy(b[18:24], m.TargetHW[:])
	putAddr4(b[24:28], m.TargetIP)
}

// NewARPRequest builds a broadcast Ethernet frame asking who has targetIP.
//
// The requester's own addresses are the sender, the target hardware address
// is zeroed.
func NewARPRequest(srcHW HardwareAddr, srcIP netip.Addr, targetIP netip.Addr) []byte {
	frame := make([]byte, EthernetHeaderLen+ARPLen)

	Ethernet{
		Dst:  Broadcast,
		Src:  srcHW,
		Type: EtherTypeARP,
	}.Put(frame)

	ARP{
		HardwareType: arpHardwareEthernet,
		ProtocolType: arpProtocolIPv4,
		HardwareLen:  HardwareAddrLen,
		ProtocolLen:  4,
		Op:           ARPRequest,
		SenderHW:     srcHW,
		SenderIP:     srcIP,
		TargetIP:     targetIP,
	}.Put(frame[EthernetHeaderLen:])

	return frame
}
