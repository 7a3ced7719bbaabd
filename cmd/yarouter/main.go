package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/yarouter/common/go/logging"
	"github.com/yanet-platform/yarouter/common/go/xcmd"
	"github.com/yanet-platform/yarouter/pkg/yarouter"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
	// Device1 overrides the first routed interface.
	Device1 string
	// Device2 overrides the second routed interface.
	Device2 string
	// NextHop overrides the default gateway.
	NextHop string
	// Debug forces debug logging, including per-frame traces.
	Debug bool
}

var rootCmd = &cobra.Command{
	Use:   "yarouter",
	Short: "User-space IPv4 router between two interfaces",
	Args:  cobra.NoArgs,
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			if errors.As(err, &xcmd.Interrupted{}) {
				return
			}

			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file")
	rootCmd.Flags().StringVar(&cmd.Device1, "device1", "", "First routed interface (default eth1)")
	rootCmd.Flags().StringVar(&cmd.Device2, "device2", "", "Second routed interface (default eth2)")
	rootCmd.Flags().StringVar(&cmd.NextHop, "next-hop", "", "Next hop for destinations off both links (default 192.168.0.254)")
	rootCmd.Flags().BoolVar(&cmd.Debug, "debug", false, "Enable debug logging with frame dumps")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd Cmd) (*yarouter.Config, error) {
	cfg := yarouter.DefaultConfig()
	if cmd.ConfigPath != "" {
		var err error
		cfg, err = yarouter.LoadConfig(cmd.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Device1 != "" {
		cfg.Devices[0] = cmd.Device1
	}
	if cmd.Device2 != "" {
		cfg.Devices[1] = cmd.Device2
	}
	if cmd.NextHop != "" {
		addr, err := netip.ParseAddr(cmd.NextHop)
		if err != nil {
			return nil, fmt.Errorf("failed to parse next hop: %w", err)
		}
		cfg.NextHop = addr
	}
	if cmd.Debug {
		cfg.Logging.Level = zapcore.DebugLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cmd Cmd) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	director, err := yarouter.NewDirector(cfg, yarouter.WithLog(log))
	if err != nil {
		return fmt.Errorf("failed to create director: %w", err)
	}
	defer director.Close()

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return director.Run(ctx)
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}
