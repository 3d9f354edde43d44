package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDNSStats_RecordQuery(t *testing.T) {
	s := NewDNSStats()
	s.RecordQuery("udp")
	s.RecordQuery("udp")
	s.RecordQuery("tcp")
	s.RecordQuery("bogus") // counted in total, not in either transport bucket

	snap := s.Snapshot()
	assert.Equal(t, uint64(4), snap.QueriesTotal)
	assert.Equal(t, uint64(2), snap.QueriesUDP)
	assert.Equal(t, uint64(1), snap.QueriesTCP)
}

func TestDNSStats_RecordSource(t *testing.T) {
	s := NewDNSStats()
	s.RecordSource("local")
	s.RecordSource("local")
	s.RecordSource("upstream-cache")
	s.RecordSource("upstream")
	s.RecordSource("upstream-inflight")
	s.RecordSource("nxdomain") // not a resolution source, ignored

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.LocalHits)
	assert.Equal(t, uint64(1), snap.UpstreamCacheHits)
	assert.Equal(t, uint64(2), snap.UpstreamLiveHits)
}

func TestDNSStats_CacheHitRatio(t *testing.T) {
	s := NewDNSStats()
	s.RecordSource("local")
	s.RecordSource("local")
	s.RecordSource("upstream-cache")
	s.RecordSource("upstream")

	snap := s.Snapshot()
	assert.InDelta(t, 0.75, snap.CacheHitRatio, 0.0001, "3 of 4 resolutions served from a cache layer")
}

func TestDNSStats_CacheHitRatioNoResolutions(t *testing.T) {
	s := NewDNSStats()
	snap := s.Snapshot()
	assert.Zero(t, snap.CacheHitRatio, "expected ratio 0 with no resolved queries")
}

func TestDNSStats_RecordNXDOMAINAndError(t *testing.T) {
	s := NewDNSStats()
	s.RecordNXDOMAIN()
	s.RecordError()
	s.RecordError()

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.ResponsesNX)
	assert.Equal(t, uint64(2), snap.ResponsesErr)
}

func TestDNSStats_RecordLatency(t *testing.T) {
	s := NewDNSStats()
	s.RecordQuery("udp")
	s.RecordQuery("udp")
	s.RecordLatency(1_000_000) // 1ms
	s.RecordLatency(3_000_000) // 3ms
	s.RecordLatency(-1)        // ignored

	snap := s.Snapshot()
	assert.InDelta(t, 2.0, snap.AvgLatencyMs, 0.0001)
}

func TestDNSStats_RecordTruncation(t *testing.T) {
	s := NewDNSStats()
	s.RecordTruncation()
	s.RecordTruncation()

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.TruncatedUDP)
}

func TestDNSStats_RecordTCPConnectionRejected(t *testing.T) {
	s := NewDNSStats()
	s.RecordTCPConnectionRejected()

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.TCPConnsRejected)
}
