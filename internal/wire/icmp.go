package wire

import (
	"encoding/binary"
	"net/netip"
)

const (
	// ICMPHeaderLen is the length of an ICMP error message header.
	ICMPHeaderLen = 8
	// TimeExceededQuoteLen is how many bytes of the offending datagram,
	// starting at its IPv4 header, are quoted in a Time Exceeded message.
	TimeExceededQuoteLen = 64
	// DefaultTTL is the TTL of locally originated datagrams.
	DefaultTTL = 64

	ICMPTypeTimeExceeded    = 11
	ICMPCodeTTLExceeded     = 0
	timeExceededFrameLength = EthernetHeaderLen + IPv4HeaderLen + ICMPHeaderLen + TimeExceededQuoteLen
)

// NewTimeExceeded builds an ICMP Time Exceeded (TTL exceeded in transit)
// frame answering the given IPv4 frame.
//
// The reply is addressed to the original sender and originates from the
// replying port's hardware and IPv4 addresses.
func NewTimeExceeded(srcHW HardwareAddr, srcIP netip.Addr, frame []byte, eth Ethernet, ip IPv4) []byte {
	reply := make([]byte, timeExceededFrameLength)

	Ethernet{
		Dst:  eth.Src,
		Src:  srcHW,
		Type: EtherTypeIPv4,
	}.Put(reply)

	hdr := IPv4{
		TotalLen: IPv4HeaderLen + ICMPHeaderLen + TimeExceededQuoteLen,
		TTL:      DefaultTTL,
		Protocol: IPProtocolICMP,
		Src:      srcIP,
		Dst:      ip.Src,
	}
	hdr.putHeader(reply[EthernetHeaderLen:])

	icmp := reply[EthernetHeaderLen+IPv4HeaderLen:]
	icmp[0] = ICMPTypeTimeExceeded
	icmp[1] = ICMPCodeTTLExceeded

	// Quote the original datagram; short datagrams leave zero padding.
	quote := icmp[ICMPHeaderLen:]
	if len(frame) > EthernetHeaderLen {
		copy(quote, frame[EthernetHeaderLen:])
	}

	binary.BigEndian.PutUint16(icmp[2:4], Checksum2(icmp[:ICMPHeaderLen], quote))

	return reply
}
