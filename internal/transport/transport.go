// Package transport defines the raw duplex byte transport between the host
// and sandbox contexts.
//
// A Transport delivers opaque payloads at most once, preserving order within
// each direction. Nothing above this layer may assume ordering across
// directions. Once severed, a transport stays severed; reconnecting means
// building a new one.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send once the underlying connection is severed,
// and is the terminal resolution for anything still waiting on the transport.
var ErrClosed = errors.New("transport closed")

// Handler consumes one inbound payload. Handlers for a given transport are
// invoked sequentially, in the order the payloads were sent.
type Handler func(payload []byte)

// Transport is an asynchronous duplex byte channel.
type Transport interface {
	// Send enqueues a payload for delivery to the peer. Delivery is
	// at-most-once; there is no retry and no acknowledgment.
	Send(ctx context.Context, payload []byte) error

	// Bind registers the inbound handler. Must be called exactly once,
	// before the first payload arrives.
	Bind(h Handler)

	// Close severs the transport. Idempotent.
	Close() error

	// Done is closed when the transport is severed, whether locally or
	// by the peer.
	Done() <-chan struct{}
}
