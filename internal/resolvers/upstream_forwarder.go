package resolvers

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/helpers"
)

// Upstream forwarder configuration defaults.
const (
	DefaultCacheMaxEntries = 20000 // Default maximum cached responses
	DefaultUDPTimeout      = 3 * time.Second
	DefaultTCPTimeout      = 5 * time.Second
)

// UpstreamForwarder forwards DNS queries to a single configured upstream
// server over UDP, falling back to TCP when the UDP reply is truncated.
//
// Features:
//   - Response caching with TTL-aware expiration (RFC 2308 negative caching
//     for NXDOMAIN/NODATA/SERVFAIL; this is ordinary short-lived negative
//     caching, not the NSEC/NSEC3-aware DNSSEC negative caching this
//     server does not implement)
//   - Singleflight deduplication (coalesces concurrent identical queries
//     into a single upstream round trip)
//   - TCP fallback when the UDP response is truncated (TC flag set)
//   - Response validation (QNAME/QTYPE/QCLASS echoed back) to reject a
//     reply that does not answer the question that was asked
//
// The cache stores responses with wire-format transaction ID 0 so
// concurrent clients with different transaction IDs can share one
// cached entry; PatchTransactionID restores each client's own ID before
// the response is returned.
type UpstreamForwarder struct {
	addr string // host:port of the upstream server

	udpTimeout time.Duration
	tcpTimeout time.Duration

	cache *TTLCache[QuestionKey, []byte]

	inflightMu sync.Mutex
	inflight   map[QuestionKey]*inflightCall
}

// inflightCall tracks an in-progress query for singleflight deduplication.
type inflightCall struct {
	done chan struct{}
	resp []byte
	err  error
}

// NewUpstreamForwarder creates an UpstreamForwarder that sends queries to
// addr (host:port; defaults to port 53 if addr has no port).
func NewUpstreamForwarder(addr string, cacheMaxEntries int, udpTimeout, tcpTimeout time.Duration) *UpstreamForwarder {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}
	if cacheMaxEntries <= 0 {
		cacheMaxEntries = DefaultCacheMaxEntries
	}
	if udpTimeout <= 0 {
		udpTimeout = DefaultUDPTimeout
	}
	if tcpTimeout <= 0 {
		tcpTimeout = DefaultTCPTimeout
	}
	return &UpstreamForwarder{
		addr:       addr,
		udpTimeout: udpTimeout,
		tcpTimeout: tcpTimeout,
		cache:      NewTTLCache[QuestionKey, []byte](cacheMaxEntries),
		inflight:   map[QuestionKey]*inflightCall{},
	}
}

// Close is a no-op; UpstreamForwarder dials a fresh connection per
// query rather than holding a pool open.
func (f *UpstreamForwarder) Close() error { return nil }

// CacheStats returns hit/miss counters for the response cache.
func (f *UpstreamForwarder) CacheStats() CacheStats {
	return f.cache.Stats()
}

// Resolve forwards req to the configured upstream, or serves a cached
// answer if one is live. Respects ctx cancellation for both the cache
// dedup wait and the network round trip.
func (f *UpstreamForwarder) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	if len(req.Questions) == 0 {
		return Result{}, fmt.Errorf("upstream: %w", errNoQuestion)
	}
	txid := req.Header.ID
	key := normalizeQuestionKey(req)

	if v, age, ok, _ := f.cache.GetWithAge(key); ok {
		adjusted := adjustTTLs(v, age)
		return Result{ResponseBytes: PatchTransactionID(adjusted, txid), Source: "upstream-cache"}, nil
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	f.inflightMu.Lock()
	if call := f.inflight[key]; call != nil {
		f.inflightMu.Unlock()
		select {
		case <-call.done:
			if call.err != nil {
				return Result{}, call.err
			}
			return Result{ResponseBytes: PatchTransactionID(call.resp, txid), Source: "upstream-inflight"}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	f.inflight[key] = call
	f.inflightMu.Unlock()

	resp, err := f.queryAndCache(ctx, key, req, reqBytes)
	call.resp = resp
	call.err = err
	close(call.done)

	f.inflightMu.Lock()
	delete(f.inflight, key)
	f.inflightMu.Unlock()

	if err != nil {
		return Result{}, err
	}
	return Result{ResponseBytes: PatchTransactionID(resp, txid), Source: "upstream"}, nil
}

func normalizeQuestionKey(req dns.Packet) QuestionKey {
	q := req.Questions[0]
	return QuestionKey{QName: dns.NormalizeName(q.Name), QType: q.Type, QClass: q.Class}
}

// queryAndCache performs the UDP round trip (with TCP fallback on
// truncation), validates the reply, and stores it in the cache.
func (f *UpstreamForwarder) queryAndCache(
	ctx context.Context,
	key QuestionKey,
	req dns.Packet,
	reqBytes []byte,
) ([]byte, error) {
	queryBytes := PatchTransactionID(reqBytes, 0)

	resp, err := f.queryUDP(ctx, queryBytes)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", f.addr, classifyNetErr(err))
	}

	if dns.IsTruncated(resp) {
		tcpResp, err := queryUpstreamTCP(ctx, queryBytes, f.addr, f.tcpTimeout)
		if err == nil {
			resp = tcpResp
		}
	}

	if err := validateResponse(req, resp); err != nil {
		return nil, fmt.Errorf("upstream %s: %w: %w", f.addr, ErrUpstreamBadResponse, err)
	}

	f.storeInCache(key, resp)
	return resp, nil
}

// classifyNetErr maps a raw network error to the repository error
// taxonomy: a timed-out deadline is UpstreamTimeout, anything else
// (dial refused, unreachable, closed) is UpstreamUnreachable.
func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
}

// queryUDP sends req to the upstream over UDP and returns the raw reply.
func (f *UpstreamForwarder) queryUDP(ctx context.Context, req []byte) ([]byte, error) {
	d := net.Dialer{Timeout: f.udpTimeout}
	conn, err := d.DialContext(ctx, "udp", f.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(f.udpTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	buf := make([]byte, dns.EDNSMaxUDPPayloadSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	resp := make([]byte, n)
	copy(resp, buf[:n])
	return resp, nil
}

// queryUpstreamTCP sends req to host over a length-prefixed TCP
// connection (RFC 1035 Section 4.2.2) and returns the response.
func queryUpstreamTCP(ctx context.Context, req []byte, addr string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], helpers.ClampIntToUint16(len(req)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	respLen := int(binary.BigEndian.Uint16(prefix[:]))
	if respLen <= 0 {
		return nil, errors.New("upstream TCP: zero-length response")
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// validateResponse checks that resp answers the question that was
// asked, guarding against off-path cache poisoning.
func validateResponse(req dns.Packet, respBytes []byte) error {
	resp, err := dns.ParsePacket(respBytes)
	if err != nil {
		return fmt.Errorf("parse upstream response: %w", err)
	}
	if len(resp.Questions) == 0 {
		return errors.New("upstream response has no question section")
	}

	reqQ, resQ := req.Questions[0], resp.Questions[0]
	if !equalDNSNames(reqQ.Name, resQ.Name) {
		return fmt.Errorf("upstream response QNAME mismatch: sent %q, got %q", reqQ.Name, resQ.Name)
	}
	if reqQ.Type != resQ.Type {
		return fmt.Errorf("upstream response QTYPE mismatch: sent %d, got %d", reqQ.Type, resQ.Type)
	}
	if reqQ.Class != resQ.Class {
		return fmt.Errorf("upstream response QCLASS mismatch: sent %d, got %d", reqQ.Class, resQ.Class)
	}
	return nil
}

func equalDNSNames(a, b string) bool {
	return strings.EqualFold(dns.NormalizeName(a), dns.NormalizeName(b))
}

// storeInCache analyzes resp and caches it with a TTL derived from its
// content (RFC 2308).
func (f *UpstreamForwarder) storeInCache(key QuestionKey, resp []byte) {
	decision := analyzeCacheDecision(resp)
	if decision.ttlSeconds <= 0 {
		return
	}
	f.cache.Set(key, resp, time.Duration(decision.ttlSeconds)*time.Second, decision.entryType)
}

type cacheDecision struct {
	ttlSeconds int
	entryType  CacheEntryType
}

// analyzeCacheDecision determines caching parameters from a response:
//   - SERVFAIL: cache briefly (30s) to shield the upstream from retries
//   - NXDOMAIN / NODATA: cache per the SOA MINIMUM, or 300s by default
//   - positive: cache for the minimum TTL among the answer records
func analyzeCacheDecision(respBytes []byte) cacheDecision {
	resp, err := dns.ParsePacket(respBytes)
	if err != nil {
		return cacheDecision{}
	}

	rcode := dns.RCodeFromFlags(resp.Header.Flags)

	if rcode == dns.RCodeServFail {
		return cacheDecision{ttlSeconds: 30, entryType: CacheSERVFAIL}
	}
	if rcode == dns.RCodeNXDomain {
		return cacheDecision{ttlSeconds: negativeTTL(resp), entryType: CacheNXDOMAIN}
	}
	if rcode != dns.RCodeNoError {
		return cacheDecision{}
	}
	if len(resp.Answers) == 0 {
		return cacheDecision{ttlSeconds: negativeTTL(resp), entryType: CacheNODATA}
	}
	return cacheDecision{ttlSeconds: findMinimumTTL(resp.Answers), entryType: CachePositive}
}

const defaultNegativeTTL = 300

func negativeTTL(resp dns.Packet) int {
	if ttl := extractSOAMinimum(resp); ttl > 0 {
		return ttl
	}
	return defaultNegativeTTL
}

// findMinimumTTL returns the smallest non-zero TTL among answers, or 0
// if none is found.
func findMinimumTTL(answers []dns.Record) int {
	minTTL := math.MaxInt
	found := false
	for _, a := range answers {
		ttl := a.Header().TTL
		if ttl == 0 {
			continue
		}
		if int(ttl) < minTTL {
			minTTL = int(ttl)
			found = true
		}
	}
	if !found {
		return 0
	}
	return minTTL
}

// extractSOAMinimum extracts the MINIMUM field from an authority-section
// SOA record, used for RFC 2308 negative-cache TTLs.
func extractSOAMinimum(resp dns.Packet) int {
	for _, r := range resp.Authorities {
		if r.Type() != dns.TypeSOA {
			continue
		}
		opaque, ok := r.(*dns.OpaqueRecord)
		if !ok {
			continue
		}
		b, ok := opaque.Data.([]byte)
		if !ok {
			continue
		}

		off := 0
		if _, err := dns.DecodeName(b, &off); err != nil {
			continue
		}
		if _, err := dns.DecodeName(b, &off); err != nil {
			continue
		}
		if off+20 <= len(b) {
			return int(binary.BigEndian.Uint32(b[off+16 : off+20]))
		}
		if len(b) >= 4 {
			return int(binary.BigEndian.Uint32(b[len(b)-4:]))
		}
	}
	return 0
}

// adjustTTLs decrements TTLs in a cached response to reflect time spent
// in cache, walking the wire format directly rather than re-parsing and
// re-marshaling the whole message. Returns respBytes unchanged if it is
// malformed in a way that makes this unsafe.
func adjustTTLs(respBytes []byte, age time.Duration) []byte {
	if len(respBytes) < dns.HeaderSize || age <= 0 {
		return respBytes
	}
	ageSeconds := uint32(age.Seconds())
	if ageSeconds == 0 {
		return respBytes
	}

	adjusted := make([]byte, len(respBytes))
	copy(adjusted, respBytes)

	qdcount := binary.BigEndian.Uint16(adjusted[4:6])
	ancount := binary.BigEndian.Uint16(adjusted[6:8])
	nscount := binary.BigEndian.Uint16(adjusted[8:10])
	arcount := binary.BigEndian.Uint16(adjusted[10:12])

	off := dns.HeaderSize
	for range qdcount {
		if _, err := dns.DecodeName(adjusted, &off); err != nil || off+4 > len(adjusted) {
			return respBytes
		}
		off += 4
	}

	for range int(ancount) + int(nscount) + int(arcount) {
		if _, err := dns.DecodeName(adjusted, &off); err != nil || off+10 > len(adjusted) {
			return respBytes
		}
		recordType := binary.BigEndian.Uint16(adjusted[off : off+2])
		off += 4 // TYPE + CLASS

		if recordType != uint16(dns.TypeOPT) {
			oldTTL := binary.BigEndian.Uint32(adjusted[off : off+4])
			newTTL := max(uint32(1), oldTTL-ageSeconds)
			binary.BigEndian.PutUint32(adjusted[off:off+4], newTTL)
		}
		off += 4 // TTL

		if off+2 > len(adjusted) {
			return respBytes
		}
		rdlen := int(binary.BigEndian.Uint16(adjusted[off : off+2]))
		off += 2
		if off+rdlen > len(adjusted) {
			return respBytes
		}
		off += rdlen
	}

	return adjusted
}
