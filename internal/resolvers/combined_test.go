package resolvers_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/resolvers"
)

// startFakeUpstream runs a one-shot UDP server that answers every query
// with a single A record, echoing back the question it was asked.
func startFakeUpstream(t *testing.T, ip string, ttl uint32) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req, err := dns.ParsePacket(buf[:n])
			if err != nil {
				continue
			}
			resp := dns.Packet{
				Header: dns.Header{ID: req.Header.ID, Flags: dns.QRFlag, QDCount: 1, ANCount: 1},
				Questions: []dns.Question{req.Questions[0]},
				Answers: []dns.Record{
					dns.NewIPRecord(dns.NewRRHeader(req.Questions[0].Name, dns.ClassIN, ttl), net.ParseIP(ip)),
				},
			}
			b, err := resp.Marshal()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(b, addr)
		}
	}()

	return conn.LocalAddr().String()
}

func buildQuery(id uint16, name string) (dns.Packet, []byte) {
	req := dns.Packet{
		Header:    dns.Header{ID: id, Flags: dns.RDFlag, QDCount: 1},
		Questions: []dns.Question{{Name: name, Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}
	b, _ := req.Marshal()
	return req, b
}

func TestCombined_LocalHitSkipsUpstream(t *testing.T) {
	local := resolvers.NewInMemory()
	local.Save(dns.NewIPRecord(dns.NewRRHeader("cached.example.com.", dns.ClassIN, 300), net.ParseIP("192.0.2.5")))

	upstream := resolvers.NewUpstreamForwarder("127.0.0.1:1", 10, 50*time.Millisecond, 50*time.Millisecond)
	c := resolvers.NewCombined(local, upstream)

	req, reqBytes := buildQuery(1, "cached.example.com.")
	res, err := c.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)
	assert.Equal(t, "local", res.Source)
}

func TestCombined_UpstreamMissLearnsAnswer(t *testing.T) {
	addr := startFakeUpstream(t, "198.51.100.7", 300)

	local := resolvers.NewInMemory()
	upstream := resolvers.NewUpstreamForwarder(addr, 10, time.Second, time.Second)
	c := resolvers.NewCombined(local, upstream)

	req, reqBytes := buildQuery(7, "new.example.com.")
	res, err := c.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)
	assert.Equal(t, "upstream", res.Source)

	recs, found, err := local.Lookup(dns.Question{Name: "new.example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)})
	require.NoError(t, err)
	assert.True(t, found, "the upstream answer should be learned into the local store")
	require.Len(t, recs, 1)

	// A repeat query is now served locally without touching the upstream.
	res2, err := c.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)
	assert.Equal(t, "local", res2.Source)
}

func TestCombined_UpstreamCacheStats(t *testing.T) {
	addr := startFakeUpstream(t, "198.51.100.9", 300)

	local := resolvers.NewInMemory()
	upstream := resolvers.NewUpstreamForwarder(addr, 10, time.Second, time.Second)
	c := resolvers.NewCombined(local, upstream)

	req, reqBytes := buildQuery(9, "stats.example.com.")
	_, err := c.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)

	stats := c.UpstreamCacheStats()
	assert.Equal(t, 1, stats.Entries, "upstream response should be cached after the first miss")
}

func TestCombined_Close(t *testing.T) {
	local := resolvers.NewInMemory()
	upstream := resolvers.NewUpstreamForwarder("127.0.0.1:1", 10, time.Second, time.Second)
	c := resolvers.NewCombined(local, upstream)
	assert.NoError(t, c.Close())
}
