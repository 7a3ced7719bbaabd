package resolver

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config is the resolver configuration.
type Config struct {
	// TickInterval is how often entries are swept.
	TickInterval time.Duration `yaml:"tick_interval"`
	// MaxRetries is the number of ARP retransmissions after the initial
	// request before the resolution is considered failed.
	MaxRetries int `yaml:"max_retries"`
	// PendingTTL is how long an unresolved entry may keep its frames.
	PendingTTL time.Duration `yaml:"pending_ttl"`
	// ResolvedTTL is how long a resolved entry lives without being
	// confirmed by ARP traffic.
	ResolvedTTL time.Duration `yaml:"resolved_ttl"`
	// Backoff shapes the intervals between ARP retransmissions.
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig is the exponential backoff of ARP retransmissions.
type BackoffConfig struct {
	InitialInterval     time.Duration `yaml:"initial_interval"`
	Multiplier          float64       `yaml:"multiplier"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() *Config {
	return &Config{
		TickInterval: 100 * time.Millisecond,
		MaxRetries:   4,
		PendingTTL:   5 * time.Second,
		ResolvedTTL:  60 * time.Second,
		Backoff: BackoffConfig{
			InitialInterval:     250 * time.Millisecond,
			Multiplier:          2,
			MaxInterval:         2 * time.Second,
			RandomizationFactor: 0,
		},
	}
}

// Validate checks the configuration.
func (m *Config) Validate() error {
	if m.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", m.TickInterval)
	}
	if m.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", m.MaxRetries)
	}
	if m.PendingTTL <= 0 {
		return fmt.Errorf("pending_ttl must be positive, got %s", m.PendingTTL)
	}
	if m.ResolvedTTL <= 0 {
		return fmt.Errorf("resolved_ttl must be positive, got %s", m.ResolvedTTL)
	}
	if err := m.Backoff.Validate(); err != nil {
		return fmt.Errorf("invalid backoff: %w", err)
	}
	return nil
}

// Validate checks the configuration.
func (m *BackoffConfig) Validate() error {
	if m.InitialInterval <= 0 {
		return fmt.Errorf("initial_interval must be positive, got %s", m.InitialInterval)
	}
	if m.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", m.Multiplier)
	}
	if m.MaxInterval < m.InitialInterval {
		return fmt.Errorf("max_interval %s is less than initial_interval %s", m.MaxInterval, m.InitialInterval)
	}
	if m.RandomizationFactor < 0 || m.RandomizationFactor >= 1 {
		return fmt.Errorf("randomization_factor must be in [0, 1), got %v", m.RandomizationFactor)
	}
	return nil
}

// NewBackOff creates a retransmission policy for a single entry.
func (m *BackoffConfig) NewBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     m.InitialInterval,
		RandomizationFactor: m.RandomizationFactor,
		Multiplier:          m.Multiplier,
		MaxInterval:         m.MaxInterval,
	}
	b.Reset()
	return b
}
