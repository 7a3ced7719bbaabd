package wire

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumKnownVector(t *testing.T) {
	// IPv4 header example with its checksum field zeroed; the expected value
	// is 0xb861.
	hdr := []byte{
		0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11,
		0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7,
	}
	require.Equal(t, uint16(0xb861), Checksum(hdr))

	binary.BigEndian.PutUint16(hdr[10:], 0xb861)
	require.True(t, ValidChecksum(Checksum(hdr)))
}

func TestChecksumOddLength(t *testing.T) {
	// The odd trailing byte is the high byte of a zero-padded word.
	require.Equal(t, Checksum([]byte{0x12, 0x34, 0x56, 0x00}), Checksum([]byte{0x12, 0x34, 0x56}))
	require.Equal(t, ^uint16(0xab00), Checksum([]byte{0xab}))
}

func TestChecksumEmpty(t *testing.T) {
	require.Equal(t, uint16(0xffff), Checksum(nil))
	require.True(t, ValidChecksum(Checksum(nil)))
}

func TestChecksumCarryFolding(t *testing.T) {
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = 0xff
	}
	// A sum of all-ones words stays all-ones after folding.
	require.Equal(t, uint16(0), Checksum(buf))
}

func TestChecksumRoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		size := 2 + 2*rng.Intn(256)
		buf := make([]byte, size)
		rng.Read(buf)

		// Place the checksum in a random aligned 16-bit slot.
		slot := 2 * rng.Intn(size/2)
		buf[slot], buf[slot+1] = 0, 0
		binary.BigEndian.PutUint16(buf[slot:], Checksum(buf))

		sum := Checksum(buf)
		require.True(t, ValidChecksum(sum), "size=%d slot=%d sum=%#04x", size, slot, sum)
	}
}

func TestChecksum2MatchesConcatenation(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 500; i++ {
		a := make([]byte, rng.Intn(64))
		b := make([]byte, rng.Intn(64))
		rng.Read(a)
		rng.Read(b)

		concat := append(append([]byte(nil), a...), b...)
		require.Equal(t, Checksum(concat), Checksum2(a, b), "len(a)=%d len(b)=%d", len(a), len(b))
	}
}

func TestChecksum2OddFirstBuffer(t *testing.T) {
	// 0x01 from the first buffer is the high byte, 0x02 the low one.
	require.Equal(t, ^uint16(0x0102+0x0304), Checksum2([]byte{0x01}, []byte{0x02, 0x03, 0x04}))
	// Odd first buffer with an empty second one pads with zero.
	require.Equal(t, ^uint16(0x0100), Checksum2([]byte{0x01}, nil))
}
