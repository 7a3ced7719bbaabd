package main

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(Cmd{})
	require.NoError(t, err)
	require.Equal(t, []string{"eth1", "eth2"}, cfg.Devices)
	require.Equal(t, netip.MustParseAddr("192.168.0.254"), cfg.NextHop)
	require.Equal(t, zapcore.InfoLevel, cfg.Logging.Level)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yarouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices: [veth0, veth1]\nnext_hop: 10.0.0.254\n"), 0o600))

	cfg, err := loadConfig(Cmd{
		ConfigPath: path,
		Device2:    "veth9",
		NextHop:    "10.1.0.254",
		Debug:      true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"veth0", "veth9"}, cfg.Devices)
	require.Equal(t, netip.MustParseAddr("10.1.0.254"), cfg.NextHop)
	require.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
}

func TestLoadConfigInvalidFlags(t *testing.T) {
	_, err := loadConfig(Cmd{NextHop: "gateway"})
	require.Error(t, err)

	_, err = loadConfig(Cmd{Device1: "eth2"})
	require.Error(t, err)
}
