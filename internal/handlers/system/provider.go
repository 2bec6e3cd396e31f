// Package system provides host introspection channels.
package system

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/bytedance/sonic"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers"
)

const (
	ChannelInfo = "system.info"
	ChannelTime = "system.time"
)

// Info is the response payload for system.info.
type Info struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname"`
	GoVersion string `json:"go_version"`
	UptimeMS  int64  `json:"uptime_ms"`
}

// TimeResponse is the response payload for system.time.
type TimeResponse struct {
	UnixMS int64  `json:"unix_ms"`
	RFC    string `json:"rfc3339"`
	Zone   string `json:"zone"`
}

// Provider serves host introspection requests.
type Provider struct {
	started time.Time
}

// New creates the system provider.
func New() *Provider {
	return &Provider{started: time.Now()}
}

func (p *Provider) Channels() []contract.Channel {
	return []contract.Channel{
		{Name: ChannelInfo, Shape: contract.ShapeRequest},
		{Name: ChannelTime, Shape: contract.ShapeRequest},
	}
}

func (p *Provider) Attach(r *bridge.Router) error {
	if err := handlers.RegisterRequest(r, ChannelInfo, p.info); err != nil {
		return err
	}
	return handlers.RegisterRequest(r, ChannelTime, p.now)
}

func (p *Provider) info(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return sonic.Marshal(Info{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		PID:       os.Getpid(),
		Hostname:  hostname,
		GoVersion: runtime.Version(),
		UptimeMS:  time.Since(p.started).Milliseconds(),
	})
}

func (p *Provider) now(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	now := time.Now()
	zone, _ := now.Zone()
	return sonic.Marshal(TimeResponse{
		UnixMS: now.UnixMilli(),
		RFC:    now.Format(time.RFC3339Nano),
		Zone:   zone,
	})
}
