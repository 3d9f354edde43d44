package resolvers_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/resolvers"
)

func aRecord(name string, ttl uint32, ip string) *dns.IPRecord {
	return dns.NewIPRecord(dns.NewRRHeader(name, dns.ClassIN, ttl), net.ParseIP(ip))
}

func TestInMemory_SaveAndLookup(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("www.example.com.", 300, "192.0.2.1"))

	recs, found, err := m.Lookup(dns.Question{Name: "www.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, recs, 1)
	assert.Equal(t, dns.TypeA, recs[0].Type())
}

func TestInMemory_LookupUnknownName(t *testing.T) {
	m := resolvers.NewInMemory()
	_, found, err := m.Lookup(dns.Question{Name: "nowhere.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.False(t, found, "an entirely unknown name should report found=false so the chain can fall through")
}

func TestInMemory_LookupKnownNameWrongType(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("www.example.com.", 300, "192.0.2.1"))

	recs, found, err := m.Lookup(dns.Question{Name: "www.example.com.", Type: uint16(dns.TypeMX), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found, "a known name with no data for the type is NODATA, not NXDOMAIN")
	assert.Empty(t, recs)
}

func TestInMemory_TTLZeroNotStored(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("ephemeral.example.com.", 0, "192.0.2.1"))

	_, found, err := m.Lookup(dns.Question{Name: "ephemeral.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.False(t, found, "TTL 0 means do-not-cache")
}

func TestInMemory_SaveReplacesSameRData(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("www.example.com.", 300, "192.0.2.1"))
	m.Save(aRecord("www.example.com.", 600, "192.0.2.1"))

	recs, _, err := m.Lookup(dns.Question{Name: "www.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	require.Len(t, recs, 1, "identical RDATA should replace, not accumulate")
	assert.Equal(t, uint32(600), recs[0].Header().TTL)
}

func TestInMemory_SaveAccumulatesDifferentRData(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("www.example.com.", 300, "192.0.2.1"))
	m.Save(aRecord("www.example.com.", 300, "192.0.2.2"))

	recs, _, err := m.Lookup(dns.Question{Name: "www.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestInMemory_LookupTypeALL(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("multi.example.com.", 300, "192.0.2.1"))
	m.Save(dns.NewMXRecord(dns.NewRRHeader("multi.example.com.", dns.ClassIN, 300), 10, "mail.example.com."))

	recs, found, err := m.Lookup(dns.Question{Name: "multi.example.com.", Type: uint16(dns.TypeALL), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, recs, 2)
}

func TestInMemory_LookupMAILAMatchesMX(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(dns.NewMXRecord(dns.NewRRHeader("example.com.", dns.ClassIN, 300), 10, "mail.example.com."))

	recs, found, err := m.Lookup(dns.Question{Name: "example.com.", Type: uint16(dns.TypeMAILA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, recs, 1)
	assert.Equal(t, dns.TypeMX, recs[0].Type())
}

func TestInMemory_LookupMAILBMatchesMailboxTypes(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(dns.NewNameRecord(dns.NewRRHeader("example.com.", dns.ClassIN, 300), dns.TypeMG, "admin.example.com."))

	recs, found, err := m.Lookup(dns.Question{Name: "example.com.", Type: uint16(dns.TypeMAILB), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, recs, 1)
	assert.Equal(t, dns.TypeMG, recs[0].Type())
}

func TestInMemory_LookupClassANYMatchesAnyClass(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("example.com.", 300, "192.0.2.1"))

	recs, found, err := m.Lookup(dns.Question{Name: "example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassANY)})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, recs, 1)
}

func TestInMemory_LookupAXFRRefused(t *testing.T) {
	m := resolvers.NewInMemory()
	_, _, err := m.Lookup(dns.Question{Name: "example.com.", Type: uint16(dns.TypeAXFR), Class: uint16(dns.ClassIN)})
	assert.ErrorIs(t, err, resolvers.ErrNotImplemented)
}

func TestInMemory_CountAndRecentNames(t *testing.T) {
	m := resolvers.NewInMemory()
	assert.Equal(t, 0, m.Count())

	m.Save(aRecord("a.example.com.", 300, "192.0.2.1"))
	m.Save(aRecord("b.example.com.", 300, "192.0.2.2"))

	assert.Equal(t, 2, m.Count())
	recent := m.RecentNames()
	require.Len(t, recent, 2)
	assert.Equal(t, "b.example.com", recent[0], "most recently saved name comes first")
}

func TestInMemory_OnSaveHookInvoked(t *testing.T) {
	m := resolvers.NewInMemory()
	var got dns.Record
	m.OnSave(func(rec dns.Record) { got = rec })

	m.Save(aRecord("hook.example.com.", 300, "192.0.2.9"))

	require.NotNil(t, got)
	assert.Equal(t, "hook.example.com.", got.Header().Name)
}

func TestInMemory_ResolveFound(t *testing.T) {
	m := resolvers.NewInMemory()
	m.Save(aRecord("www.example.com.", 300, "192.0.2.1"))

	req := dns.Packet{
		Header:    dns.Header{ID: 42, Flags: dns.RDFlag, QDCount: 1},
		Questions: []dns.Question{{Name: "www.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
	res, err := m.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", res.Source)

	parsed, err := dns.ParsePacket(res.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), parsed.Header.ID)
	assert.NotZero(t, parsed.Header.Flags&dns.QRFlag)
	assert.Len(t, parsed.Answers, 1)
}

func TestInMemory_ResolveNotFound(t *testing.T) {
	m := resolvers.NewInMemory()
	req := dns.Packet{
		Header:    dns.Header{ID: 1, QDCount: 1},
		Questions: []dns.Question{{Name: "nowhere.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
	_, err := m.Resolve(context.Background(), req, nil)
	assert.Error(t, err, "an unknown name should error so a chain falls through to the next resolver")
}

func TestInMemory_ResolveNoQuestion(t *testing.T) {
	m := resolvers.NewInMemory()
	_, err := m.Resolve(context.Background(), dns.Packet{}, nil)
	assert.Error(t, err)
}

func TestInMemory_Close(t *testing.T) {
	m := resolvers.NewInMemory()
	assert.NoError(t, m.Close())
}
