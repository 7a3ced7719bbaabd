package neigh

import (
	"fmt"

	"github.com/c2h5oh/datasize"
)

// Config is the resolution cache configuration.
type Config struct {
	// Capacity is the number of entry slots.
	Capacity int `yaml:"capacity"`
	// MaxQueueLen bounds the number of frames waiting for a single
	// resolution.
	MaxQueueLen int `yaml:"max_queue_len"`
	// MaxQueueSize bounds the total size of frames waiting for a single
	// resolution.
	MaxQueueSize datasize.ByteSize `yaml:"max_queue_size"`
}

// DefaultConfig returns the default resolution cache configuration.
func DefaultConfig() *Config {
	return &Config{
		Capacity:     256,
		MaxQueueLen:  128,
		MaxQueueSize: 256 * datasize.KB,
	}
}

// Validate checks the configuration.
func (m *Config) Validate() error {
	if m.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", m.Capacity)
	}
	if m.MaxQueueLen <= 0 {
		return fmt.Errorf("max_queue_len must be positive, got %d", m.MaxQueueLen)
	}
	if m.MaxQueueSize == 0 {
		return fmt.Errorf("max_queue_size must be positive")
	}
	return nil
}
