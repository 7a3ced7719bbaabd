package yarouter

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yarouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"eth1", "eth2"}, cfg.Devices)
	require.Equal(t, netip.MustParseAddr("192.168.0.254"), cfg.NextHop)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
devices: [veth0, veth1]
next_hop: 10.1.0.254
promiscuous: false
mux:
  poll_timeout: 50ms
  frame_size: 9KB
cache:
  capacity: 64
resolver:
  max_retries: 2
  backoff:
    initial_interval: 100ms
    multiplier: 1.5
    max_interval: 1s
metrics:
  endpoint: "[::1]:9100"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	require.Equal(t, []string{"veth0", "veth1"}, cfg.Devices)
	require.Equal(t, netip.MustParseAddr("10.1.0.254"), cfg.NextHop)
	require.False(t, cfg.Promiscuous)
	require.True(t, cfg.DisableKernelForwarding)
	require.Equal(t, 50*time.Millisecond, cfg.Mux.PollTimeout)
	require.Equal(t, 9*datasize.KB, cfg.Mux.FrameSize)
	require.Equal(t, 64, cfg.Cache.Capacity)
	// Unset fields keep their defaults.
	require.Equal(t, 128, cfg.Cache.MaxQueueLen)
	require.Equal(t, 2, cfg.Resolver.MaxRetries)
	require.Equal(t, 5*time.Second, cfg.Resolver.PendingTTL)
	require.Equal(t, 1.5, cfg.Resolver.Backoff.Multiplier)
	require.Equal(t, "[::1]:9100", cfg.Metrics.Endpoint)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "OneDevice",
			content: "devices: [eth1]\n",
		},
		{
			name:    "SameDevices",
			content: "devices: [eth1, eth1]\n",
		},
		{
			name:    "IPv6NextHop",
			content: "next_hop: 2001:db8::1\n",
		},
		{
			name:    "BadNextHop",
			content: "next_hop: gateway\n",
		},
		{
			name:    "ZeroCapacity",
			content: "cache:\n  capacity: 0\n",
		},
		{
			name:    "TinyFrames",
			content: "mux:\n  frame_size: 32B\n",
		},
		{
			name:    "NegativeRetries",
			content: "resolver:\n  max_retries: -1\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, test.content))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
