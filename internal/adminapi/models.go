package adminapi

// StatusResponse is the /healthz body.
type StatusResponse struct {
	Status string `json:"status"`
}

// DNSStatsResponse mirrors server.DNSStatsSnapshot for JSON encoding.
type DNSStatsResponse struct {
	QueriesTotal      uint64  `json:"queries_total"`
	QueriesUDP        uint64  `json:"queries_udp"`
	QueriesTCP        uint64  `json:"queries_tcp"`
	ResponsesNX       uint64  `json:"responses_nxdomain"`
	ResponsesErr      uint64  `json:"responses_error"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	LocalHits         uint64  `json:"local_hits"`
	UpstreamCacheHits uint64  `json:"upstream_cache_hits"`
	UpstreamLiveHits  uint64  `json:"upstream_live_hits"`
	CacheHitRatio     float64 `json:"cache_hit_ratio"`
	TruncatedUDP      uint64  `json:"truncated_udp"`
	TCPConnsRejected  uint64  `json:"tcp_conns_rejected"`

	// Response cache (the upstream forwarder's TTL cache) counters.
	ResponseCacheHits    int `json:"response_cache_hits"`
	ResponseCacheMisses  int `json:"response_cache_misses"`
	ResponseCacheEntries int `json:"response_cache_entries"`
}

// CPUStats is system-wide CPU usage, sampled from gopsutil.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
}

// MemoryStats is system-wide memory usage, sampled from gopsutil.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// StatsResponse is the /stats body.
type StatsResponse struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPU           CPUStats         `json:"cpu"`
	Memory        MemoryStats      `json:"memory"`
	DNS           DNSStatsResponse `json:"dns"`
}

// CacheResponse is the /cache body: a bounded operator sanity-check
// snapshot, not a management/editing surface.
type CacheResponse struct {
	RecordCount int      `json:"record_count"`
	RecentNames []string `json:"recent_names"`
}

// ErrorResponse is returned for any 4xx/5xx admin API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
