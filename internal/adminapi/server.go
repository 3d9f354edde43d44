// Package adminapi provides a small read-only management HTTP surface
// for HydraDNS: health, process/query statistics, and a bounded cache
// snapshot. It is an operational sidecar, off by default and bound to
// 127.0.0.1 unless configured otherwise — the DNS core (codec, resolver,
// server) has no dependency on it and it never sits on the hot query
// path.
package adminapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/hydradns/internal/config"
)

// DNSStatsSnapshot mirrors server.DNSStatsSnapshot so this package does
// not need to import internal/server directly; the caller adapts.
type DNSStatsSnapshot struct {
	QueriesTotal      uint64
	QueriesUDP        uint64
	QueriesTCP        uint64
	ResponsesNX       uint64
	ResponsesErr      uint64
	AvgLatencyMs      float64
	LocalHits         uint64
	UpstreamCacheHits uint64
	UpstreamLiveHits  uint64
	CacheHitRatio     float64
	TruncatedUDP      uint64
	TCPConnsRejected  uint64

	ResponseCacheHits    int
	ResponseCacheMisses  int
	ResponseCacheEntries int
}

// StatsSource supplies the query counters behind /stats. The caller
// adapts server.DNSStats.Snapshot (a distinct named type) into this
// shape, since Go interfaces match method signatures structurally but
// a return type's name must still match exactly.
type StatsSource func() DNSStatsSnapshot

// CacheSource supplies the /cache snapshot. resolvers.InMemory satisfies
// this directly.
type CacheSource interface {
	Count() int
	RecentNames() []string
}

// Server is the admin HTTP server.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// New builds the admin server. stats and cache may be nil if the caller
// hasn't wired a repository yet; /stats and /cache then report zero
// values rather than panicking.
func New(cfg *config.Config, logger *slog.Logger, stats StatsSource, cache CacheSource) *Server {
	if cfg == nil {
		panic("adminapi.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(slogLogger(logger))

	s := &Server{cfg: cfg, logger: logger, engine: engine, startTime: time.Now()}

	group := engine.Group("/")
	if cfg.API.APIKey != "" {
		group.Use(requireAPIKey(cfg.API.APIKey))
	}
	group.GET("/healthz", s.handleHealthz)
	group.GET("/stats", func(c *gin.Context) { s.handleStats(c, stats) })
	group.GET("/cache", func(c *gin.Context) { s.handleCache(c, cache) })

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// ListenAndServe blocks serving admin requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleStats(c *gin.Context, stats StatsSource) {
	resp := StatsResponse{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		CPU:           sampleCPU(),
		Memory:        sampleMemory(),
	}
	if stats != nil {
		snap := stats()
		resp.DNS = DNSStatsResponse{
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

			ResponseCacheHits:    snap.ResponseCacheHits,
			ResponseCacheMisses:  snap.ResponseCacheMisses,
			ResponseCacheEntries: snap.ResponseCacheEntries,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCache(c *gin.Context, cache CacheSource) {
	resp := CacheResponse{}
	if cache != nil {
		resp.RecordCount = cache.Count()
		resp.RecentNames = cache.RecentNames()
	}
	c.JSON(http.StatusOK, resp)
}
