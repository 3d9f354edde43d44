package resolvers

import (
	"context"
	"fmt"
	"sync"

	"github.com/jroosing/hydradns/internal/dns"
)

// InMemory is the local authoritative record store: a thread-safe map of
// configured or learned records, keyed by normalized owner name.
// It answers directly from what it holds and never performs I/O.
//
// Matching rules (RFC 1035 Section 3.2.3, Section 6.2.1):
//   - QTYPE matches a stored record's TYPE exactly, or QTYPE == ALL ("*")
//     matches every type stored for the name.
//   - QCLASS matches a stored record's CLASS exactly, or QCLASS == ANY
//     ("*") matches every class.
//   - MAILB matches stored MB/MG/MR records; MAILA matches stored MX
//     records (RFC 1035 Section 3.2.3). AXFR is always refused as not
//     implemented; this store never holds a full zone transfer.
type InMemory struct {
	mu      sync.RWMutex
	records map[string][]dns.Record // normalized owner name -> records
	recent  []string                // ring buffer of recently-saved owner names, most recent last
	onSave  func(dns.Record)        // optional hook invoked after each Save, e.g. to persist seeds
}

// recentNamesCap bounds the ring buffer exposed by RecentNames, so a
// busy cache-aside insert path can't grow it unbounded.
const recentNamesCap = 50

// NewInMemory creates an empty local repository.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string][]dns.Record)}
}

// Save adds rec to the records held for its owner name, replacing an
// existing record of the same type with identical RDATA.
// A record with TTL 0 is not stored: RFC 1035 treats TTL 0 as "do not
// cache", so there is nothing useful to save.
func (m *InMemory) Save(rec dns.Record) {
	h := rec.Header()
	if h.TTL == 0 {
		return
	}
	name := dns.NormalizeName(h.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.records[name]
	out := existing[:0:0]
	replaced := false
	for _, r := range existing {
		if r.Type() == rec.Type() && sameRData(r, rec) {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
	}
	m.records[name] = out

	m.recent = append(m.recent, name)
	if len(m.recent) > recentNamesCap {
		m.recent = m.recent[len(m.recent)-recentNamesCap:]
	}

	hook := m.onSave
	m.mu.Unlock()
	if hook != nil {
		hook(rec)
	}
	m.mu.Lock()
}

// OnSave registers a callback invoked after every successful Save, used
// to mirror runtime-learned records back to a persistent seed store.
// Only one hook is supported; a later call replaces an earlier one.
func (m *InMemory) OnSave(fn func(dns.Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSave = fn
}

// Count returns the number of distinct owner names currently held.
func (m *InMemory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// RecentNames returns up to recentNamesCap of the most recently saved
// owner names, most recent first. Intended for operator sanity checks
// (internal/adminapi's /cache), not as a management surface.
func (m *InMemory) RecentNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.recent))
	for i, n := range m.recent {
		out[len(m.recent)-1-i] = n
	}
	return out
}

// sameRData reports whether two records of the same type carry
// identical RDATA, used by Save to replace a stale copy of a record
// rather than accumulating duplicates.
func sameRData(a, b dns.Record) bool {
	ab, errA := a.MarshalRData()
	bb, errB := b.MarshalRData()
	if errA != nil || errB != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// ErrNotImplemented is returned for AXFR, the one query-only type this
// server refuses outright rather than answering from its local store.
var ErrNotImplemented = fmt.Errorf("not implemented")

// Lookup returns the records matching q, if any are held locally.
// found is false when the name is entirely unknown (the caller should
// try the next resolver in the chain); an empty, non-nil slice with
// found true means the name is known but has no data of this type
// (NODATA, not NXDOMAIN).
func (m *InMemory) Lookup(q dns.Question) (recs []dns.Record, found bool, err error) {
	if dns.RecordType(q.Type) == dns.TypeAXFR {
		return nil, false, ErrNotImplemented
	}

	name := dns.NormalizeName(q.Name)

	m.mu.RLock()
	defer m.mu.RUnlock()

	all, ok := m.records[name]
	if !ok {
		return nil, false, nil
	}

	matches := make([]dns.Record, 0, len(all))
	for _, r := range all {
		if !classMatches(r.Header().Class, q.Class) {
			continue
		}
		if !typeMatches(dns.RecordType(q.Type), r.Type()) {
			continue
		}
		matches = append(matches, r)
	}
	return matches, true, nil
}

func classMatches(rrClass dns.RecordClass, qclass uint16) bool {
	return dns.RecordClass(qclass) == dns.ClassANY || rrClass == dns.RecordClass(qclass)
}

// typeMatches implements RFC 1035 Section 3.2.1/6.2.1 QTYPE matching:
// ALL ("*") matches any stored type, MAILB matches the mailbox-related
// types (MB/MG/MR), MAILA matches MX, and everything else matches
// exactly.
func typeMatches(qtype, rrType dns.RecordType) bool {
	switch qtype {
	case dns.TypeALL:
		return true
	case dns.TypeMAILB:
		return rrType == dns.TypeMB || rrType == dns.TypeMG || rrType == dns.TypeMR
	case dns.TypeMAILA:
		return rrType == dns.TypeMX
	default:
		return rrType == qtype
	}
}

// Resolve implements Resolver so InMemory can sit directly in a resolver
// chain ahead of an upstream forwarder. A lookup that finds the name but
// no matching type still returns a (possibly empty) authoritative
// answer; only an entirely unknown name is reported as an error so later
// resolvers in the chain get a chance to answer it.
func (m *InMemory) Resolve(_ context.Context, req dns.Packet, _ []byte) (Result, error) {
	if len(req.Questions) == 0 {
		return Result{}, fmt.Errorf("local store: %w", errNoQuestion)
	}
	q := req.Questions[0]

	recs, found, err := m.Lookup(q)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, errNameNotFound
	}

	resp := dns.Packet{
		Header: dns.Header{
			ID:    req.Header.ID,
			Flags: dns.QRFlag | dns.AAFlag,
		},
		Questions: []dns.Question{q},
		Answers:   recs,
	}
	b, err := resp.Marshal()
	if err != nil {
		return Result{}, err
	}
	return Result{ResponseBytes: b, Source: "local"}, nil
}

// Close is a no-op; InMemory owns no external resources.
func (m *InMemory) Close() error { return nil }

var (
	errNoQuestion   = fmt.Errorf("request carries no question")
	errNameNotFound = fmt.Errorf("name not present in local store")
)
