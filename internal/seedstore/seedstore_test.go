package seedstore

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/dns"
)

func TestOpenCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	recs, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSaveAndRecordsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	rec := dns.NewIPRecord(dns.NewRRHeader("www.example.com", dns.ClassIN, 300), net.IPv4(10, 0, 0, 5))
	seed, err := FromRecord(rec)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, seed))

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	restored, err := recs[0].ToRecord()
	require.NoError(t, err)
	assert.Equal(t, dns.TypeA, restored.Type())

	ip, ok := restored.(*dns.IPRecord)
	require.True(t, ok)
	assert.Equal(t, net.IPv4(10, 0, 0, 5).To4(), ip.Addr.To4())
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	rec := dns.NewIPRecord(dns.NewRRHeader("www.example.com", dns.ClassIN, 300), net.IPv4(10, 0, 0, 5))
	seed, err := FromRecord(rec)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, seed))

	seed.TTL = 600
	require.NoError(t, s.Save(ctx, seed))

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1, "same name/type/class/rdata should upsert, not duplicate")
	assert.Equal(t, uint32(600), recs[0].TTL)
}

func TestReopenPersistsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.db")

	s, err := Open(path)
	require.NoError(t, err)

	rec := dns.NewNameRecord(dns.NewRRHeader("alias.example.com", dns.ClassIN, 120), dns.TypeCNAME, "target.example.com")
	seed, err := FromRecord(rec)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), seed))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	recs, err := s2.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	restored, err := recs[0].ToRecord()
	require.NoError(t, err)
	nr, ok := restored.(*dns.NameRecord)
	require.True(t, ok)
	assert.Equal(t, "target.example.com", nr.Target)
}
