package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismshell/prism/internal/transport"
)

func TestFacadeOperations(t *testing.T) {
	hostEnd, sandboxEnd := transport.Pair()
	defer hostEnd.Close()
	ct := testContract(t)

	host := NewRouter(hostEnd, ct)
	facade := NewFacade(NewRouter(sandboxEnd, ct))

	require.NoError(t, host.HandleRequest("echo", func(_ context.Context, p json.RawMessage) (json.RawMessage, error) {
		return p, nil
	}))

	events := make(chan json.RawMessage, 1)
	require.NoError(t, host.HandleEvent("note", func(p json.RawMessage) {
		events <- p
	}))
	host.Start()

	t.Run("Invoke", func(t *testing.T) {
		resp, err := facade.Invoke(context.Background(), "echo", json.RawMessage(`"ping"`))
		require.NoError(t, err)
		assert.JSONEq(t, `"ping"`, string(resp))
	})

	t.Run("Invoke undeclared", func(t *testing.T) {
		_, err := facade.Invoke(context.Background(), "host.secrets", nil)
		assert.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("Emit", func(t *testing.T) {
		require.NoError(t, facade.Emit(context.Background(), "note", json.RawMessage(`{"k":"v"}`)))
		select {
		case got := <-events:
			assert.JSONEq(t, `{"k":"v"}`, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("event never delivered")
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		ticks := make(chan json.RawMessage, 1)
		cancel, err := facade.Subscribe("tick", func(p json.RawMessage) { ticks <- p })
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, host.Push(context.Background(), "tick", json.RawMessage(`{"seq":7}`)))
		select {
		case got := <-ticks:
			assert.JSONEq(t, `{"seq":7}`, string(got))
		case <-time.After(2 * time.Second):
			t.Fatal("push never delivered")
		}
	})
}

func TestFacadeChannelsFixed(t *testing.T) {
	hostEnd, sandboxEnd := transport.Pair()
	defer hostEnd.Close()
	_ = hostEnd
	ct := testContract(t)

	facade := NewFacade(NewRouter(sandboxEnd, ct))

	channels := facade.Channels()
	require.Len(t, channels, ct.Len())

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"echo", "fail", "note", "slow", "tick"}, names)
}
