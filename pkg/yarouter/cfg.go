package yarouter

import (
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yanet-platform/yarouter/common/go/logging"
	"github.com/yanet-platform/yarouter/internal/mux"
	"github.com/yanet-platform/yarouter/internal/neigh"
	"github.com/yanet-platform/yarouter/internal/resolver"
)

type Config config
type config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Devices are the names of the two routed interfaces.
	Devices []string `yaml:"devices"`
	// NextHop is the gateway for destinations outside both directly
	// connected networks.
	NextHop netip.Addr `yaml:"next_hop"`
	// DisableKernelForwarding turns kernel IPv4 forwarding off at startup.
	DisableKernelForwarding bool `yaml:"disable_kernel_forwarding"`
	// Promiscuous switches the interfaces into promiscuous mode.
	Promiscuous bool `yaml:"promiscuous"`
	// Mux is the frame multiplexer configuration.
	Mux *mux.Config `yaml:"mux"`
	// Cache is the resolution cache configuration.
	Cache *neigh.Config `yaml:"cache"`
	// Resolver is the resolver daemon configuration.
	Resolver *resolver.Config `yaml:"resolver"`
	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig is the prometheus endpoint configuration.
type MetricsConfig struct {
	// Endpoint is the address to serve "/metrics" on. Empty disables it.
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging:                 logging.DefaultConfig(),
		Devices:                 []string{"eth1", "eth2"},
		NextHop:                 netip.MustParseAddr("192.168.0.254"),
		DisableKernelForwarding: true,
		Promiscuous:             true,
		Mux:                     mux.DefaultConfig(),
		Cache:                   neigh.DefaultConfig(),
		Resolver:                resolver.DefaultConfig(),
	}
}

// LoadConfig loads the configuration from the given path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}

	return cfg, nil
}

// UnmarshalYAML serves as a proxy for validation.
func (m *Config) UnmarshalYAML(value *yaml.Node) error {
	if err := value.Decode((*config)(m)); err != nil {
		return err
	}
	return m.Validate()
}

// Validate validates the router configuration.
func (m *Config) Validate() error {
	if len(m.Devices) != 2 {
		return fmt.Errorf("exactly two devices are required, got %d", len(m.Devices))
	}
	for _, name := range m.Devices {
		if name == "" {
			return fmt.Errorf("device name must not be empty")
		}
	}
	if m.Devices[0] == m.Devices[1] {
		return fmt.Errorf("devices must differ, got %q twice", m.Devices[0])
	}
	if !m.NextHop.Is4() {
		return fmt.Errorf("next hop must be an IPv4 address, got %q", m.NextHop)
	}

	if m.Mux == nil {
		return fmt.Errorf("mux is not configured")
	}
	if err := m.Mux.Validate(); err != nil {
		return fmt.Errorf("invalid mux config: %w", err)
	}
	if m.Cache == nil {
		return fmt.Errorf("cache is not configured")
	}
	if err := m.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}
	if m.Resolver == nil {
		return fmt.Errorf("resolver is not configured")
	}
	if err := m.Resolver.Validate(); err != nil {
		return fmt.Errorf("invalid resolver config: %w", err)
	}
	return nil
}
