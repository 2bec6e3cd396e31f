// Package handlers assembles the host-side capability providers. Each
// provider declares the channels it serves and registers its handlers
// against a router; the catalog is the single place the declared channel
// set is built, before any sandbox connects.
package handlers

import (
	"context"
	"errors"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
)

// Provider is one host capability: a group of declared channels plus the
// handlers that serve them.
type Provider interface {
	// Channels declares the provider's capability set.
	Channels() []contract.Channel
	// Attach registers the provider's handlers on the router.
	Attach(r *bridge.Router) error
}

// Runner is implemented by providers with background work (push loops).
type Runner interface {
	Run(ctx context.Context)
}

// Catalog is an ordered set of providers.
type Catalog struct {
	providers []Provider
}

// NewCatalog builds a catalog from providers.
func NewCatalog(providers ...Provider) *Catalog {
	return &Catalog{providers: providers}
}

// Contract builds the full declared channel set across all providers.
// Duplicate declarations across providers are a startup-time error.
func (c *Catalog) Contract() (*contract.Contract, error) {
	var channels []contract.Channel
	for _, p := range c.providers {
		channels = append(channels, p.Channels()...)
	}
	return contract.New(channels...)
}

// Attach registers every provider on the router. Channels removed from the
// router's contract by the manifest are skipped, not errors.
func (c *Catalog) Attach(r *bridge.Router) error {
	for _, p := range c.providers {
		if err := p.Attach(r); err != nil {
			return err
		}
	}
	return nil
}

// Run starts every provider that has background work and blocks until the
// context is canceled.
func (c *Catalog) Run(ctx context.Context) {
	for _, p := range c.providers {
		if runner, ok := p.(Runner); ok {
			go runner.Run(ctx)
		}
	}
	<-ctx.Done()
}

// RegisterRequest registers a request handler, treating a channel disabled
// at startup (absent from the router's contract) as a no-op.
func RegisterRequest(r *bridge.Router, name string, fn bridge.HandlerFunc) error {
	if err := r.HandleRequest(name, fn); err != nil && !errors.Is(err, bridge.ErrUnknownChannel) {
		return err
	}
	return nil
}

// RegisterEvent registers an event handler with the same disabled-channel
// tolerance as RegisterRequest.
func RegisterEvent(r *bridge.Router, name string, fn bridge.EventFunc) error {
	if err := r.HandleEvent(name, fn); err != nil && !errors.Is(err, bridge.ErrUnknownChannel) {
		return err
	}
	return nil
}
