package bridge

import (
	"context"
	"encoding/json"

	"github.com/prismshell/prism/internal/contract"
)

// Facade is the only object sandbox-side code may hold. It exposes exactly
// the declared channel set and nothing else: no router, no transport, no
// ambient host capability. Constructing a Facade over a router built from a
// declared contract is the only way capabilities reach the sandbox.
type Facade struct {
	router *Router
}

// NewFacade wraps a router and starts it. The sandbox side has no handler
// registration to race with, so the facade is live on construction. The
// router itself must never be handed to sandbox code.
func NewFacade(r *Router) *Facade {
	r.Start()
	return &Facade{router: r}
}

// Invoke sends a request on a declared channel and waits for its response.
func (f *Facade) Invoke(ctx context.Context, channel string, payload json.RawMessage) (json.RawMessage, error) {
	return f.router.Request(ctx, channel, payload)
}

// Emit sends a fire-and-forget message on a declared channel.
func (f *Facade) Emit(ctx context.Context, channel string, payload json.RawMessage) error {
	return f.router.Emit(ctx, channel, payload)
}

// Subscribe registers a consumer for a declared push channel. The returned
// cancel func removes the subscription.
func (f *Facade) Subscribe(channel string, fn PushFunc) (func(), error) {
	return f.router.Subscribe(channel, fn)
}

// Channels lists the declared channel set. Introspection stops here: the
// set is fixed and nothing outside it is reachable.
func (f *Facade) Channels() []contract.Channel {
	return f.router.Contract().Channels()
}
