package wire

import "errors"

var (
	// ErrTooShort is returned when the captured bytes are fewer than the
	// header being decoded requires.
	ErrTooShort = errors.New("too short")
	// ErrOptionsTooLong is returned when the IPv4 header declares an option
	// area over MaxOptionsLen.
	ErrOptionsTooLong = errors.New("ip options too long")
	// ErrBadVersion is returned when an IPv4 ethertype carries another IP
	// version.
	ErrBadVersion = errors.New("bad ip version")
	// ErrBadHeaderLength is returned when the IPv4 IHL field is below the
	// minimum of 5 words.
	ErrBadHeaderLength = errors.New("bad ip header length")
	// ErrUnsupported is returned for ARP packets that do not map IPv4 onto
	// Ethernet addresses.
	ErrUnsupported = errors.New("unsupported arp format")
)
