package server

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/jroosing/hydradns/internal/config"
	"github.com/jroosing/hydradns/internal/resolvers"
)

// Runner orchestrates the DNS server startup, configuration, and shutdown.
type Runner struct {
	logger *slog.Logger

	// Local, if set, is used as the local repository instead of a fresh
	// InMemory store. Set by the process collaborator when preloading
	// persisted seed records (internal/seedstore).
	Local *resolvers.InMemory

	// Stats collects query counters surfaced by internal/adminapi's
	// /stats endpoint. Created lazily by Run if left nil.
	Stats *DNSStats

	repo *resolvers.Combined
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger, Stats: NewDNSStats()}
}

// Repository returns the cache-aside repository built by Run, or nil
// before Run has started. internal/adminapi uses this to report the
// local store's size on /cache.
func (r *Runner) Repository() *resolvers.Combined {
	return r.repo
}

// Run starts the DNS server with the given configuration.
//
// Server lifecycle:
//  1. Configure runtime (GOMAXPROCS based on workers setting)
//  2. Build the repository (local in-memory store cache-aside in
//     front of the single configured upstream)
//  3. Start UDP and optionally TCP servers
//  4. Wait for shutdown signal (SIGINT/SIGTERM)
//  5. Gracefully stop servers with timeout
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	desiredProcs := r.configureRuntime(cfg)
	maxConc := r.calculateMaxConcurrency(cfg, desiredProcs)

	repo := r.buildRepository(cfg)
	r.repo = repo
	defer repo.Close()

	if r.Stats == nil {
		r.Stats = NewDNSStats()
	}
	h := &QueryHandler{Logger: r.logger, Resolver: repo, Timeout: 4 * time.Second, Stats: r.Stats}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	r.logStartup(cfg, addr, maxConc)

	udp := &UDPServer{Logger: r.logger, Handler: h, WorkersPerSocket: maxConc}
	var tcp *TCPServer
	if cfg.Server.EnableTCP {
		tcp = &TCPServer{Logger: r.logger, Handler: h}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- udp.Run(ctx, addr) }()
	if tcp != nil {
		go func() { errCh <- tcp.Run(ctx, addr) }()
	}

	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	stopTimeout := 5 * time.Second
	_ = udp.Stop(stopTimeout)
	if tcp != nil {
		_ = tcp.Stop(stopTimeout)
	}
	return nil
}

// configureRuntime sets GOMAXPROCS based on worker configuration.
// Workers can reduce but never increase parallelism beyond the default.
func (r *Runner) configureRuntime(cfg *config.Config) int {
	baseProcs := runtime.GOMAXPROCS(0)
	if baseProcs <= 0 {
		baseProcs = 1
	}
	desiredProcs := baseProcs

	if cfg.Server.Workers.Mode == config.WorkersFixed {
		w := cfg.Server.Workers.Value
		if w <= 0 {
			w = 1
		}
		if w < desiredProcs {
			desiredProcs = w
		}
	}

	prev := runtime.GOMAXPROCS(desiredProcs)
	actual := runtime.GOMAXPROCS(0)
	if r.logger != nil {
		r.logger.Info("runtime", "gomaxprocs", actual, "prev", prev, "base", baseProcs)
	}
	return actual
}

// calculateMaxConcurrency determines the maximum concurrent request handlers.
func (r *Runner) calculateMaxConcurrency(cfg *config.Config, procs int) int {
	maxConc := cfg.Server.MaxConcurrency
	if maxConc <= 0 {
		c := procs
		if c <= 0 {
			c = 1
		}
		maxConc = c * 256
		if maxConc > 2048 {
			maxConc = 2048
		}
		if maxConc < 1 {
			maxConc = 1
		}
	}
	return maxConc
}

// parseTimeoutOr returns the parsed duration or a fallback if raw is empty
// or unparsable.
func parseTimeoutOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// buildRepository creates the cache-aside repository: a local in-memory
// store consulted first, falling back to the single configured upstream
// resolver on a local miss.
func (r *Runner) buildRepository(cfg *config.Config) *resolvers.Combined {
	local := r.Local
	if local == nil {
		local = resolvers.NewInMemory()
	}

	udpTimeout := parseTimeoutOr(cfg.Upstream.UDPTimeout, resolvers.DefaultUDPTimeout)
	tcpTimeout := parseTimeoutOr(cfg.Upstream.TCPTimeout, resolvers.DefaultTCPTimeout)

	upstream := resolvers.NewUpstreamForwarder(cfg.Upstream.Address, cfg.Upstream.CacheMaxEntries, udpTimeout, tcpTimeout)

	return resolvers.NewCombined(local, upstream)
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string, maxConc int) {
	if r.logger != nil {
		r.logger.Info(
			"dns listening",
			"addr", addr,
			"udp", true,
			"tcp", cfg.Server.EnableTCP,
			"upstream", cfg.Upstream.Address,
			"max_concurrency", maxConc,
		)
	}
}
