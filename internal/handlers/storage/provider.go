// Package storage provides persisted key/value channels backed by a
// gzip-compressed JSON snapshot on the host filesystem. The sandbox never
// sees a path; keys are its only namespace.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers"
)

const (
	ChannelGet     = "storage.get"
	ChannelSet     = "storage.set"
	ChannelDelete  = "storage.delete"
	ChannelList    = "storage.list"
	ChannelChanged = "storage.changed"
)

// KeyRequest addresses a single key.
type KeyRequest struct {
	Key string `json:"key"`
}

// SetRequest stores a value under a key.
type SetRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Change is the payload pushed on storage.changed.
type Change struct {
	Op  string `json:"op"` // "set" or "delete"
	Key string `json:"key"`
}

// Provider serves the storage channels over a shared Store.
type Provider struct {
	store  *Store
	router *bridge.Router
}

// New creates a storage provider over a shared store.
func New(store *Store) *Provider {
	return &Provider{store: store}
}

func (p *Provider) Channels() []contract.Channel {
	return []contract.Channel{
		{Name: ChannelGet, Shape: contract.ShapeRequest},
		{Name: ChannelSet, Shape: contract.ShapeRequest},
		{Name: ChannelDelete, Shape: contract.ShapeRequest},
		{Name: ChannelList, Shape: contract.ShapeRequest},
		{Name: ChannelChanged, Shape: contract.ShapePush},
	}
}

func (p *Provider) Attach(r *bridge.Router) error {
	p.router = r
	for name, fn := range map[string]bridge.HandlerFunc{
		ChannelGet:    p.get,
		ChannelSet:    p.set,
		ChannelDelete: p.delete,
		ChannelList:   p.list,
	} {
		if err := handlers.RegisterRequest(r, name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) get(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req KeyRequest
	if err := sonic.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("bad storage.get payload: %w", err)
	}
	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	value, ok := p.store.Get(req.Key)
	return sonic.Marshal(map[string]interface{}{
		"key":    req.Key,
		"value":  value,
		"exists": ok,
	})
}

func (p *Provider) set(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req SetRequest
	if err := sonic.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("bad storage.set payload: %w", err)
	}
	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	if err := p.store.Set(req.Key, req.Value); err != nil {
		return nil, err
	}
	p.notify(ctx, Change{Op: "set", Key: req.Key})
	return sonic.Marshal(map[string]interface{}{"key": req.Key, "stored": true})
}

func (p *Provider) delete(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req KeyRequest
	if err := sonic.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("bad storage.delete payload: %w", err)
	}
	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	existed, err := p.store.Delete(req.Key)
	if err != nil {
		return nil, err
	}
	if existed {
		p.notify(ctx, Change{Op: "delete", Key: req.Key})
	}
	return sonic.Marshal(map[string]interface{}{"key": req.Key, "deleted": existed})
}

func (p *Provider) list(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return sonic.Marshal(map[string]interface{}{
		"keys":  p.store.Keys(),
		"count": p.store.Len(),
	})
}

// notify pushes a change notification. Best-effort: a severed transport or a
// manifest-disabled channel is not a mutation failure.
func (p *Provider) notify(ctx context.Context, change Change) {
	payload, err := sonic.Marshal(change)
	if err != nil {
		return
	}
	_ = p.router.Push(ctx, ChannelChanged, payload)
}
