package yarouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/yarouter/internal/device"
	"github.com/yanet-platform/yarouter/internal/forward"
	"github.com/yanet-platform/yarouter/internal/metrics"
	"github.com/yanet-platform/yarouter/internal/mux"
	"github.com/yanet-platform/yarouter/internal/neigh"
	"github.com/yanet-platform/yarouter/internal/resolver"
)

// Link is a frame-oriented connection to a routed interface.
type Link interface {
	Fd() int
	io.Reader
	io.Writer
	io.Closer
}

type options struct {
	Log *zap.SugaredLogger
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
	}
}

// DirectorOption is a function that configures the router director.
type DirectorOption func(*options)

// WithLog sets the logger for the router director.
func WithLog(log *zap.SugaredLogger) DirectorOption {
	return func(o *options) {
		o.Log = log
	}
}

// Director is the router director.
//
// It owns the ports, the resolution cache and every loop servicing them.
type Director struct {
	cfg      *Config
	ports    [2]*device.Port
	links    [2]Link
	cache    *neigh.Cache
	engine   *forward.Engine
	daemon   *resolver.Daemon
	mux      *mux.Mux
	registry *prometheus.Registry
	log      *zap.SugaredLogger
}

// NewDirector discovers the configured interfaces, opens raw sockets on them
// and assembles the router.
func NewDirector(cfg *Config, options ...DirectorOption) (*Director, error) {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	log := opts.Log
	log.Infof("initializing router ...")
	log.Debugw("parsed config", zap.Any("config", cfg))

	if cfg.DisableKernelForwarding {
		if err := device.DisableIPForward(); err != nil {
			log.Warnw("failed to disable kernel forwarding", zap.Error(err))
		}
	}

	ports := [2]*device.Port{}
	for idx, name := range cfg.Devices {
		port, err := device.Discover(idx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to discover device %q: %w", name, err)
		}
		log.Infow("discovered device", zap.Stringer("port", port))
		ports[idx] = port
	}

	links := [2]Link{}
	for idx, port := range ports {
		sock, err := device.OpenRawSocket(port, cfg.Promiscuous)
		if err != nil {
			closeLinks(links[:idx])
			return nil, err
		}
		links[idx] = sock
	}

	m, err := newDirector(cfg, ports, links, opts)
	if err != nil {
		closeLinks(links[:])
		return nil, err
	}
	return m, nil
}

func newDirector(cfg *Config, ports [2]*device.Port, links [2]Link, opts *options) (*Director, error) {
	log := opts.Log

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	routerMetrics := metrics.New(registry)

	tx := device.NewSet(links[0], links[1])
	prober := resolver.NewProber(ports, tx,
		resolver.WithLog(log),
		resolver.WithMetrics(routerMetrics),
	)

	cache, err := neigh.NewCache(cfg.Cache, prober,
		neigh.WithLog(log),
		neigh.WithBackOff(cfg.Resolver.Backoff.NewBackOff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}
	metrics.RegisterEntries(registry, cache.Len)

	engine := forward.NewEngine(ports, cfg.NextHop, cache, tx,
		forward.WithLog(log),
		forward.WithMetrics(routerMetrics),
	)

	daemon, err := resolver.NewDaemon(cfg.Resolver, cache, ports, tx, prober,
		resolver.WithLog(log),
		resolver.WithMetrics(routerMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	m := &Director{
		cfg:      cfg,
		ports:    ports,
		links:    links,
		cache:    cache,
		engine:   engine,
		daemon:   daemon,
		registry: registry,
		log:      log,
	}

	m.mux, err = mux.New(cfg.Mux, []mux.Conn{links[0], links[1]}, mux.HandlerFunc(m.handle),
		mux.WithLog(log),
		mux.WithMetrics(routerMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create multiplexer: %w", err)
	}

	return m, nil
}

// Cache returns the resolution cache.
func (m *Director) Cache() *neigh.Cache {
	return m.cache
}

// Close closes the router sockets.
func (m *Director) Close() error {
	return errors.Join(closeLinks(m.links[:])...)
}

// Run runs the router until the context is canceled.
func (m *Director) Run(ctx context.Context) error {
	m.log.Infow("running router",
		zap.Stringers("ports", m.ports[:]),
		zap.Stringer("next_hop", m.cfg.NextHop),
	)

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return m.mux.Run(ctx)
	})
	wg.Go(func() error {
		return m.daemon.Run(ctx)
	})
	if endpoint := m.cfg.Metrics.Endpoint; endpoint != "" {
		wg.Go(func() error {
			return m.serveMetrics(ctx, endpoint)
		})
	}

	return wg.Wait()
}

func (m *Director) handle(device int, frame []byte) bool {
	verdict, err := m.engine.Process(device, frame)
	switch {
	case err == nil:
	case errors.Is(err, forward.ErrNotForUs):
	case errors.Is(err, forward.ErrTransmit):
		m.log.Warnw("failed to process frame", zap.Int("device", device), zap.Error(err))
	default:
		m.log.Debugw("dropped frame", zap.Int("device", device), zap.Error(err))
	}

	return verdict.Retained()
}

func (m *Director) serveMetrics(ctx context.Context, endpoint string) error {
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              endpoint,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		m.log.Infow("serving metrics", zap.String("endpoint", endpoint))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve metrics on %q: %w", endpoint, err)
		}
		return nil
	})
	wg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return wg.Wait()
}

func closeLinks(links []Link) []error {
	errs := []error{}
	for _, link := range links {
		if link == nil {
			continue
		}
		if err := link.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
