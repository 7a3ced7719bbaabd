// Package dump renders frames as short human readable lines for debug logs.
package dump

import (
	"fmt"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Summary describes the frame layer by layer.
func Summary(frame []byte) string {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	parts := make([]string, 0, 4)
	for _, layer := range pkt.Layers() {
		if part := describe(layer); part != "" {
			parts = append(parts, part)
		}
	}
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		parts = append(parts, fmt.Sprintf("error(%v)", errLayer.Error()))
	}

	return fmt.Sprintf("%d bytes: %s", len(frame), strings.Join(parts, " | "))
}

func describe(layer gopacket.Layer) string {
	switch l := layer.(type) {
	case *layers.Ethernet:
		return fmt.Sprintf("%s > %s %s", l.SrcMAC, l.DstMAC, l.EthernetType)
	case *layers.ARP:
		switch l.Operation {
		case layers.ARPRequest:
			return fmt.Sprintf("ARP who-has %s tell %s", ipString(l.DstProtAddress), ipString(l.SourceProtAddress))
		case layers.ARPReply:
			return fmt.Sprintf("ARP %s is-at %s", ipString(l.SourceProtAddress), macString(l.SourceHwAddress))
		default:
			return fmt.Sprintf("ARP op=%d", l.Operation)
		}
	case *layers.IPv4:
		return fmt.Sprintf("%s > %s ttl=%d len=%d %s", l.SrcIP, l.DstIP, l.TTL, l.Length, l.Protocol)
	case *layers.ICMPv4:
		return fmt.Sprintf("ICMP %s", l.TypeCode)
	case *layers.UDP:
		return fmt.Sprintf("UDP %d > %d", l.SrcPort, l.DstPort)
	case *layers.TCP:
		return fmt.Sprintf("TCP %d > %d", l.SrcPort, l.DstPort)
	default:
		return ""
	}
}

func ipString(b []byte) string {
	if len(b) != 4 {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func macString(b []byte) string {
	parts := make([]string, len(b))
	for idx, v := range b {
		parts[idx] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}
