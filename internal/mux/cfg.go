package mux

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
)

// Config is the multiplexer configuration.
type Config struct {
	// PollTimeout bounds a single wait for frames, so that cancellation is
	// noticed in time.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// FrameSize is the size of receive buffers.
	FrameSize datasize.ByteSize `yaml:"frame_size"`
}

// DefaultConfig returns the default multiplexer configuration.
func DefaultConfig() *Config {
	return &Config{
		PollTimeout: 100 * time.Millisecond,
		FrameSize:   2 * datasize.KB,
	}
}

// Validate checks the configuration.
func (m *Config) Validate() error {
	if m.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive, got %s", m.PollTimeout)
	}
	if m.FrameSize < 64 {
		return fmt.Errorf("frame_size must be at least 64B, got %s", m.FrameSize.HR())
	}
	return nil
}
