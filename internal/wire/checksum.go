package wire

// Checksum computes the Internet checksum (RFC 1071) of the given bytes.
//
// An odd trailing byte is treated as the high byte of a word whose low byte
// is zero.
func Checksum(b []byte) uint16 {
	return ^fold(sum(0, b))
}

// Checksum2 computes the Internet checksum of two buffers as if they were
// concatenated.
//
// An odd trailing byte of the first buffer becomes the high byte of a word
// whose low byte is the first byte of the second buffer.
func Checksum2(a, b []byte) uint16 {
	acc := sum(0, a[:len(a)&^1])
	if len(a)%2 == 1 {
		word := uint32(a[len(a)-1]) << 8
		if len(b) > 0 {
			word |= uint32(b[0])
			b = b[1:]
		}
		acc = carry(acc + word)
	}

	return ^fold(sum(acc, b))
}

// ValidChecksum reports whether the result of recomputing a checksum over
// data that already contains its checksum field is valid.
//
// Both 0 and 0xffff are accepted, since ones' complement arithmetic has two
// representations of zero.
func ValidChecksum(sum uint16) bool {
	return sum == 0 || sum == 0xffff
}

func sum(acc uint32, b []byte) uint32 {
	for len(b) >= 2 {
		acc = carry(acc + (uint32(b[0])<<8 | uint32(b[1])))
		b = b[2:]
	}
	if len(b) == 1 {
		acc = carry(acc + uint32(b[0])<<8)
	}
	return acc
}

func carry(acc uint32) uint32 {
	return (acc & 0xffff) + (acc >> 16)
}

func fold(acc uint32) uint16 {
	for acc>>16 != 0 {
		acc = carry(acc)
	}
	return uint16(acc)
}
