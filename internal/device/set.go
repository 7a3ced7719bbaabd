package device

import (
	"fmt"
	"io"
)

// Set transmits frames over the router devices by index.
type Set struct {
	writers []io.Writer
}

// NewSet creates a transmitter over the given writers, the position of a
// writer being its device index.
func NewSet(writers ...io.Writer) *Set {
	return &Set{
		writers: writers,
	}
}

// Transmit writes the frame to the device.
func (m *Set) Transmit(device int, frame []byte) error {
	if device < 0 || device >= len(m.writers) {
		return fmt.Errorf("device %d: no such device", device)
	}

	n, err := m.writers[device].Write(frame)
	if err != nil {
		return fmt.Errorf("failed to write to device %d: %w", device, err)
	}
	if n != len(frame) {
		return fmt.Errorf("failed to write to device %d: %w", device, io.ErrShortWrite)
	}
	return nil
}
