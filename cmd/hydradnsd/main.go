// Command hydradnsd runs the HydraDNS recursive/forwarding name server:
// the UDP/TCP DNS listeners, an optional on-disk seed store preloaded
// into the local cache-aside store, and an optional admin HTTP sidecar.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jroosing/hydradns/internal/adminapi"
	"github.com/jroosing/hydradns/internal/config"
	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/logging"
	"github.com/jroosing/hydradns/internal/resolvers"
	"github.com/jroosing/hydradns/internal/seedstore"
	"github.com/jroosing/hydradns/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	host       string
	port       int
	noTCP      bool
	debug      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.host, "host", "", "Override DNS server bind host")
	flag.IntVar(&f.port, "port", 0, "Override DNS server bind port")
	flag.BoolVar(&f.noTCP, "no-tcp", false, "Disable TCP server")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.noTCP {
		cfg.Server.EnableTCP = false
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("hydradnsd starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"workers", cfg.Server.Workers.String(),
		"tcp", cfg.Server.EnableTCP,
		"upstream", cfg.Upstream.Address,
	)

	var store *seedstore.Store
	local := resolvers.NewInMemory()
	if cfg.SeedStore.Path != "" {
		store, err = seedstore.Open(cfg.SeedStore.Path)
		if err != nil {
			return fmt.Errorf("open seed store: %w", err)
		}
		defer store.Close()

		if err := preloadSeeds(store, local, logger); err != nil {
			logger.Error("seed preload failed", "err", err)
		}
	}

	runner := server.NewRunner(logger)
	runner.Local = local

	var apiSrv *adminapi.Server
	if cfg.API.Enabled {
		statsSource := adminapi.StatsSource(func() adminapi.DNSStatsSnapshot {
			snap := runner.Stats.Snapshot()
			out := adminapi.DNSStatsSnapshot{
				QueriesTotal:      snap.QueriesTotal,
				QueriesUDP:        snap.QueriesUDP,
				QueriesTCP:        snap.QueriesTCP,
				ResponsesNX:       snap.ResponsesNX,
				ResponsesErr:      snap.ResponsesErr,
				AvgLatencyMs:      snap.AvgLatencyMs,
				LocalHits:         snap.LocalHits,
				UpstreamCacheHits: snap.UpstreamCacheHits,
				UpstreamLiveHits:  snap.UpstreamLiveHits,
				CacheHitRatio:     snap.CacheHitRatio,
				TruncatedUDP:      snap.TruncatedUDP,
				TCPConnsRejected:  snap.TCPConnsRejected,
			}
			if repo := runner.Repository(); repo != nil {
				cacheStats := repo.UpstreamCacheStats()
				out.ResponseCacheHits = cacheStats.Hits
				out.ResponseCacheMisses = cacheStats.Misses
				out.ResponseCacheEntries = cacheStats.Entries
			}
			return out
		})
		apiSrv = adminapi.New(cfg, logger, statsSource, local)

		logger.Info("admin API starting", "addr", apiSrv.Addr())
		go func() {
			serveErr := apiSrv.ListenAndServe()
			if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
				return
			}
			logger.Error("admin API server error", "err", serveErr)
		}()
	}

	runErr := runner.Run(cfg)

	if apiSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = apiSrv.Shutdown(shutdownCtx)
		cancel()
		logger.Info("admin API stopped")
	}

	if runErr != nil {
		return fmt.Errorf("server exited with error: %w", runErr)
	}
	return nil
}

// preloadSeeds loads persisted records from the seed store into the
// local in-memory store, and mirrors subsequent local saves back to
// the store so records learned at runtime survive a restart.
func preloadSeeds(store *seedstore.Store, local *resolvers.InMemory, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := store.Records(ctx)
	if err != nil {
		return fmt.Errorf("read seed records: %w", err)
	}

	loaded := 0
	for _, sr := range records {
		rec, err := sr.ToRecord()
		if err != nil {
			logger.Warn("skipping malformed seed record", "name", sr.Name, "err", err)
			continue
		}
		local.Save(rec)
		loaded++
	}
	logger.Info("seed store preload complete", "records", loaded)

	local.OnSave(func(rec dns.Record) {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer saveCancel()
		sr, err := seedstore.FromRecord(rec)
		if err != nil {
			return
		}
		if err := store.Save(saveCtx, sr); err != nil {
			logger.Warn("seed store mirror failed", "err", err)
		}
	})

	return nil
}
