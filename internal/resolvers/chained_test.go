package resolvers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/dns"
	"github.com/jroosing/hydradns/internal/resolvers"
)

// stubResolver is a minimal resolvers.Resolver for exercising Chained
// without any network I/O.
type stubResolver struct {
	result   resolvers.Result
	err      error
	closeErr error
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, _ dns.Packet, _ []byte) (resolvers.Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubResolver) Close() error {
	return s.closeErr
}

func TestChained_FirstSuccessWins(t *testing.T) {
	first := &stubResolver{result: resolvers.Result{Source: "first"}}
	second := &stubResolver{result: resolvers.Result{Source: "second"}}
	c := &resolvers.Chained{Resolvers: []resolvers.Resolver{first, second}}

	res, err := c.Resolve(context.Background(), dns.Packet{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Source)
	assert.Equal(t, 0, second.calls, "second resolver should never be tried")
}

func TestChained_FallsThroughOnError(t *testing.T) {
	first := &stubResolver{err: errors.New("miss")}
	second := &stubResolver{result: resolvers.Result{Source: "second"}}
	c := &resolvers.Chained{Resolvers: []resolvers.Resolver{first, second}}

	res, err := c.Resolve(context.Background(), dns.Packet{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Source)
}

func TestChained_AllFailReturnsLastError(t *testing.T) {
	wantErr := errors.New("upstream down")
	first := &stubResolver{err: errors.New("miss")}
	second := &stubResolver{err: wantErr}
	c := &resolvers.Chained{Resolvers: []resolvers.Resolver{first, second}}

	_, err := c.Resolve(context.Background(), dns.Packet{}, nil)
	assert.ErrorIs(t, err, wantErr)
}

func TestChained_NoResolversErrors(t *testing.T) {
	c := &resolvers.Chained{}
	_, err := c.Resolve(context.Background(), dns.Packet{}, nil)
	assert.Error(t, err)
}

func TestChained_RespectsContextCancellation(t *testing.T) {
	first := &stubResolver{err: errors.New("miss")}
	second := &stubResolver{result: resolvers.Result{Source: "second"}}
	c := &resolvers.Chained{Resolvers: []resolvers.Resolver{first, second}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Resolve(ctx, dns.Packet{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.calls, "a resolver should not be tried once the context is already canceled")
}

func TestChained_CloseAggregatesAllChildren(t *testing.T) {
	first := &stubResolver{closeErr: errors.New("first close failed")}
	second := &stubResolver{}
	c := &resolvers.Chained{Resolvers: []resolvers.Resolver{first, second}}

	err := c.Close()
	assert.Error(t, err)
}
