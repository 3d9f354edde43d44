package server

import (
	"sync/atomic"
)

// DNSStats collects DNS query statistics for the resolver chain: query
// volume by transport, response outcome, and which layer of the
// cache-aside resolver (local store, upstream response cache, or a
// live upstream round trip) actually answered each query. All methods
// are safe for concurrent use.
type DNSStats struct {
	queriesTotal      atomic.Uint64
	queriesUDP        atomic.Uint64
	queriesTCP        atomic.Uint64
	responsesNX       atomic.Uint64
	responsesErr      atomic.Uint64
	latencyTotalNs    atomic.Uint64
	localHits         atomic.Uint64
	upstreamCacheHits atomic.Uint64
	upstreamLiveHits  atomic.Uint64
	truncatedUDP      atomic.Uint64
	tcpConnsRejected  atomic.Uint64
}

// NewDNSStats creates a new DNS statistics collector.
func NewDNSStats() *DNSStats {
	return &DNSStats{}
}

// RecordQuery records a DNS query for the given transport (udp or tcp).
func (s *DNSStats) RecordQuery(transport string) {
	s.queriesTotal.Add(1)
	switch transport {
	case "udp":
		s.queriesUDP.Add(1)
	case "tcp":
		s.queriesTCP.Add(1)
	}
}

// RecordNXDOMAIN records an NXDOMAIN response.
func (s *DNSStats) RecordNXDOMAIN() {
	s.responsesNX.Add(1)
}

// RecordError records an error response (SERVFAIL, FORMERR, etc.).
func (s *DNSStats) RecordError() {
	s.responsesErr.Add(1)
}

// RecordLatency records query latency in nanoseconds.
func (s *DNSStats) RecordLatency(ns int64) {
	if ns > 0 {
		s.latencyTotalNs.Add(uint64(ns))
	}
}

// RecordSource records which resolver layer produced a successful
// answer, using the same source tags resolvers.Result.Source carries
// ("local", "upstream-cache", "upstream-inflight", "upstream").
// Unrecognised tags (error sources like "timeout" or "servfail", which
// RecordError already covers) are ignored.
func (s *DNSStats) RecordSource(source string) {
	switch source {
	case "local":
		s.localHits.Add(1)
	case "upstream-cache":
		s.upstreamCacheHits.Add(1)
	case "upstream", "upstream-inflight":
		s.upstreamLiveHits.Add(1)
	}
}

// RecordTruncation records a UDP response that was truncated to fit
// the client's advertised (or default) payload size.
func (s *DNSStats) RecordTruncation() {
	s.truncatedUDP.Add(1)
}

// RecordTCPConnectionRejected records a TCP connection refused because
// the client's per-IP connection limit was already reached.
func (s *DNSStats) RecordTCPConnectionRejected() {
	s.tcpConnsRejected.Add(1)
}

// DNSStatsSnapshot is a point-in-time snapshot of DNS server statistics.
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
	CacheHitRatio     float64 // (LocalHits+UpstreamCacheHits) / resolved queries
	TruncatedUDP      uint64
	TCPConnsRejected  uint64
}

// Snapshot returns the current statistics.
func (s *DNSStats) Snapshot() DNSStatsSnapshot {
	total := s.queriesTotal.Load()
	latencyNs := s.latencyTotalNs.Load()
	localHits := s.localHits.Load()
	upstreamCacheHits := s.upstreamCacheHits.Load()
	upstreamLiveHits := s.upstreamLiveHits.Load()

	avgLatencyMs := 0.0
	if total > 0 {
		avgLatencyMs = float64(latencyNs) / float64(total) / 1e6
	}

	cacheHitRatio := 0.0
	if resolved := localHits + upstreamCacheHits + upstreamLiveHits; resolved > 0 {
		cacheHitRatio = float64(localHits+upstreamCacheHits) / float64(resolved)
	}

	return DNSStatsSnapshot{
		QueriesTotal:      total,
		QueriesUDP:        s.queriesUDP.Load(),
		QueriesTCP:        s.queriesTCP.Load(),
		ResponsesNX:       s.responsesNX.Load(),
		ResponsesErr:      s.responsesErr.Load(),
		AvgLatencyMs:      avgLatencyMs,
		LocalHits:         localHits,
		UpstreamCacheHits: upstreamCacheHits,
		UpstreamLiveHits:  upstreamLiveHits,
		CacheHitRatio:     cacheHitRatio,
		TruncatedUDP:      s.truncatedUDP.Load(),
		TCPConnsRejected:  s.tcpConnsRejected.Load(),
	}
}
