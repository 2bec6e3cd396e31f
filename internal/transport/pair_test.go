package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairDelivery(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	received := make(chan []byte, 16)
	b.Bind(func(payload []byte) {
		received <- payload
	})

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("hello")))

	select {
	case got := <-received:
		assert.Equal(t, []byte("hello"), got)
	case <-time.After(time.Second):
		t.Fatal("payload never delivered")
	}
}

func TestPairOrdering(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	const n = 50
	received := make(chan string, n)
	b.Bind(func(payload []byte) {
		received <- string(payload)
	})

	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, a.Send(ctx, []byte(fmt.Sprintf("msg-%03d", i))))
	}

	for i := 0; i < n; i++ {
		select {
		case got := <-received:
			assert.Equal(t, fmt.Sprintf("msg-%03d", i), got, "per-direction order must be preserved")
		case <-time.After(time.Second):
			t.Fatalf("payload %d never delivered", i)
		}
	}
}

func TestPairBothDirections(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	fromA := make(chan []byte, 1)
	fromB := make(chan []byte, 1)
	a.Bind(func(p []byte) { fromB <- p })
	b.Bind(func(p []byte) { fromA <- p })

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("a->b")))
	require.NoError(t, b.Send(ctx, []byte("b->a")))

	select {
	case got := <-fromA:
		assert.Equal(t, "a->b", string(got))
	case <-time.After(time.Second):
		t.Fatal("a->b never delivered")
	}
	select {
	case got := <-fromB:
		assert.Equal(t, "b->a", string(got))
	case <-time.After(time.Second):
		t.Fatal("b->a never delivered")
	}
}

func TestPairClose(t *testing.T) {
	a, b := Pair()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "Close must be idempotent")

	err := a.Send(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)

	// Closing one end severs both.
	err = b.Send(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("peer Done() not closed")
	}
}

func TestPairSendContextCancel(t *testing.T) {
	a, _ := Pair()
	defer a.Close()

	// Fill the outbound buffer so Send blocks, then cancel.
	ctx := context.Background()
	for i := 0; i < pairBuffer; i++ {
		require.NoError(t, a.Send(ctx, []byte("fill")))
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.Send(cancelCtx, []byte("blocked"))
	assert.ErrorIs(t, err, context.Canceled)
}
