package resolvers

import (
	"context"

	"github.com/jroosing/hydradns/internal/dns"
)

// Combined is the cache-aside repository described by the resolver
// design: answer from the local store first, fall through to the
// upstream forwarder on a miss, and learn the upstream's answers back
// into the local store so a repeated query is served locally next time.
//
// Learning is best-effort: a record with TTL 0 is never learned (see
// InMemory.Save). Every answer record of any type is passed to Save;
// no type filter is applied.
type Combined struct {
	Local    *InMemory
	Upstream *UpstreamForwarder
}

// NewCombined wires a local store and upstream forwarder into one
// Resolver.
func NewCombined(local *InMemory, upstream *UpstreamForwarder) *Combined {
	return &Combined{Local: local, Upstream: upstream}
}

// Resolve tries the local store first; on a miss (unknown name) it
// forwards upstream and learns any answers returned.
func (c *Combined) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	res, err := c.Local.Resolve(ctx, req, reqBytes)
	if err == nil {
		return res, nil
	}

	res, err = c.Upstream.Resolve(ctx, req, reqBytes)
	if err != nil {
		return Result{}, err
	}

	c.learn(res.ResponseBytes)
	return res, nil
}

// learn parses an upstream response and saves its answer records into
// the local store so future lookups for the same name are served
// without another upstream round trip.
func (c *Combined) learn(respBytes []byte) {
	resp, err := dns.ParsePacket(respBytes)
	if err != nil {
		return
	}
	for _, rec := range resp.Answers {
		c.Local.Save(rec)
	}
}

// Close releases the upstream forwarder's resources. The local store
// owns nothing that needs closing.
func (c *Combined) Close() error {
	return c.Upstream.Close()
}

// UpstreamCacheStats returns hit/miss counters for the upstream
// response cache, for operational visibility into how often a miss on
// the local store is absorbed by the cache instead of reaching the
// network.
func (c *Combined) UpstreamCacheStats() CacheStats {
	return c.Upstream.CacheStats()
}
