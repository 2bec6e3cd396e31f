package telemetry_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers/telemetry"
	"github.com/prismshell/prism/internal/infrastructure/logging"
	"github.com/prismshell/prism/internal/transport"
)

func setup(t *testing.T, interval time.Duration) (*telemetry.Provider, *bridge.Facade) {
	t.Helper()

	provider := telemetry.New(logging.NewNop(), interval)
	ct, err := contract.New(provider.Channels()...)
	require.NoError(t, err)

	hostEnd, sandboxEnd := transport.Pair()
	t.Cleanup(func() { hostEnd.Close() })

	host := bridge.NewRouter(hostEnd, ct)
	require.NoError(t, provider.Attach(host))
	host.Start()

	return provider, bridge.NewFacade(bridge.NewRouter(sandboxEnd, ct))
}

func TestEventAccepted(t *testing.T) {
	_, facade := setup(t, time.Minute)

	payload, err := json.Marshal(telemetry.Event{Level: "info", Message: "hello from sandbox"})
	require.NoError(t, err)
	require.NoError(t, facade.Emit(context.Background(), telemetry.ChannelEvent, payload))

	// Malformed payloads are logged and dropped, never an error to the sender.
	require.NoError(t, facade.Emit(context.Background(), telemetry.ChannelEvent, json.RawMessage(`{broken`)))
}

func TestHeartbeatSequence(t *testing.T) {
	provider, facade := setup(t, 5*time.Millisecond)

	beats := make(chan telemetry.Heartbeat, 8)
	cancel, err := facade.Subscribe(telemetry.ChannelHeartbeat, func(p json.RawMessage) {
		var hb telemetry.Heartbeat
		if json.Unmarshal(p, &hb) == nil {
			beats <- hb
		}
	})
	require.NoError(t, err)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go provider.Run(ctx)

	var first, second telemetry.Heartbeat
	select {
	case first = <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat")
	}
	select {
	case second = <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("no second heartbeat")
	}

	assert.Greater(t, second.Seq, first.Seq)
	assert.Positive(t, first.UnixMS)
}

func TestRunStopsWhenTransportCloses(t *testing.T) {
	provider := telemetry.New(logging.NewNop(), 5*time.Millisecond)
	ct, err := contract.New(provider.Channels()...)
	require.NoError(t, err)

	hostEnd, _ := transport.Pair()
	host := bridge.NewRouter(hostEnd, ct)
	require.NoError(t, provider.Attach(host))
	host.Start()

	done := make(chan struct{})
	go func() {
		provider.Run(context.Background())
		close(done)
	}()

	hostEnd.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat loop did not stop after transport closed")
	}
}
