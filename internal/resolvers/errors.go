package resolvers

import "errors"

// Repository-level errors (distinct from the decode-time errors in
// package dns). Callers use errors.Is against these.
var (
	// ErrUpstreamUnreachable covers I/O failures dialing or writing to
	// the configured upstream (connection refused, network unreachable).
	ErrUpstreamUnreachable = errors.New("resolvers: upstream unreachable")
	// ErrUpstreamTimeout covers a send or receive deadline expiring
	// before the upstream replied.
	ErrUpstreamTimeout = errors.New("resolvers: upstream timeout")
	// ErrUpstreamBadResponse covers a reply that could not be decoded,
	// or that does not answer the question that was asked.
	ErrUpstreamBadResponse = errors.New("resolvers: upstream bad response")
)
