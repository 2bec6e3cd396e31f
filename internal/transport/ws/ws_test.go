package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismshell/prism/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades each connection and echoes frames back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, payload); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialAndRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan []byte, 1)
	conn.Bind(func(payload []byte) {
		received <- payload
	})

	require.NoError(t, conn.Send(ctx, []byte(`{"kind":"event","channel":"x"}`)))

	select {
	case got := <-received:
		assert.Equal(t, `{"kind":"event","channel":"x"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}
}

func TestOrderingPreserved(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx := context.Background()
	conn, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	const n = 20
	received := make(chan string, n)
	conn.Bind(func(payload []byte) {
		received <- string(payload)
	})

	want := make([]string, n)
	for i := 0; i < n; i++ {
		want[i] = strings.Repeat("x", i+1)
		require.NoError(t, conn.Send(ctx, []byte(want[i])))
	}

	for i := 0; i < n; i++ {
		select {
		case got := <-received:
			assert.Equal(t, want[i], got)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestCloseSeversTransport(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "Close must be idempotent")

	err = conn.Send(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, transport.ErrClosed)

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed")
	}
}

func TestPeerCloseObserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection immediately.
		conn.Close()
	}))
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	conn.Bind(func([]byte) {})

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("peer closure never observed")
	}
}
