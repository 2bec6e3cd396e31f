// Package telemetry provides the fire-and-forget event sink and the host
// heartbeat push loop.
package telemetry

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers"
	"github.com/prismshell/prism/internal/infrastructure/logging"
)

const (
	ChannelEvent     = "telemetry.event"
	ChannelHeartbeat = "host.heartbeat"
)

// Event is the payload the sandbox emits on telemetry.event.
type Event struct {
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Fields  json.RawMessage `json:"fields,omitempty"`
}

// Heartbeat is the payload pushed on host.heartbeat.
type Heartbeat struct {
	Seq    uint64 `json:"seq"`
	UnixMS int64  `json:"unix_ms"`
}

// Provider logs sandbox telemetry and pushes periodic heartbeats.
type Provider struct {
	logger   *logging.Logger
	interval time.Duration
	router   *bridge.Router
	seq      atomic.Uint64
}

// New creates the telemetry provider. interval drives the heartbeat loop.
func New(logger *logging.Logger, interval time.Duration) *Provider {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Provider{logger: logger, interval: interval}
}

func (p *Provider) Channels() []contract.Channel {
	return []contract.Channel{
		{Name: ChannelEvent, Shape: contract.ShapeEvent},
		{Name: ChannelHeartbeat, Shape: contract.ShapePush},
	}
}

func (p *Provider) Attach(r *bridge.Router) error {
	p.router = r
	return handlers.RegisterEvent(r, ChannelEvent, p.record)
}

func (p *Provider) record(payload json.RawMessage) {
	var ev Event
	if err := sonic.Unmarshal(payload, &ev); err != nil {
		p.logger.Debug("unparseable telemetry event", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("sandbox_message", ev.Message),
		zap.String("origin", "sandbox"),
	}
	if len(ev.Fields) > 0 {
		fields = append(fields, zap.Any("fields", json.RawMessage(ev.Fields)))
	}

	switch ev.Level {
	case "error":
		p.logger.Error("sandbox telemetry", fields...)
	case "warn":
		p.logger.Warn("sandbox telemetry", fields...)
	default:
		p.logger.Info("sandbox telemetry", fields...)
	}
}

// Run pushes heartbeats until the context is canceled or the transport dies.
func (p *Provider) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := Heartbeat{
				Seq:    p.seq.Add(1),
				UnixMS: time.Now().UnixMilli(),
			}
			payload, err := sonic.Marshal(hb)
			if err != nil {
				continue
			}
			if err := p.router.Push(ctx, ChannelHeartbeat, payload); err != nil {
				// Heartbeats are best-effort; a closed transport ends the loop.
				p.logger.Debug("heartbeat push failed", zap.Error(err))
				return
			}
		}
	}
}
