// File: internal/relay/relay_test.go
package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingHandler captures dispatched frames and connect events.
type recordingHandler struct {
	mu       sync.Mutex
	frames   [][]byte
	connects atomic.Int32
}

func (h *recordingHandler) HandleRaw(_ context.Context, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	h.frames = append(h.frames, cp)
}

func (h *recordingHandler) OnConnect(context.Context) {
	h.connects.Add(1)
}

func (h *recordingHandler) frameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// testServer is a minimal relay endpoint.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	auth     string
	path     string
	dials    atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	upgrader := websocket.Upgrader{}

	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.auth = r.Header.Get(authHeader)
		ts.path = r.URL.Path
		ts.mu.Unlock()
		ts.dials.Add(1)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.mu.Lock()
			ts.received = append(ts.received, msg)
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(func() {
		ts.mu.Lock()
		for _, c := range ts.conns {
			c.Close()
		}
		ts.mu.Unlock()
		ts.Close()
	})
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) receivedCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.received)
}

func (ts *testServer) lastConn() *websocket.Conn {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		return nil
	}
	return ts.conns[len(ts.conns)-1]
}

func testRelayConfig(url string) config.RelayConfig {
	return config.RelayConfig{
		URL:            url,
		AuthToken:      "test-secret",
		ReconnectDelay: 50 * time.Millisecond,
		PingInterval:   100 * time.Millisecond,
		WriteTimeout:   time.Second,
		PongWait:       time.Second,
		SendBuffer:     8,
	}
}

func TestRelay_ConnectSendReceive(t *testing.T) {
	ts := newTestServer(t)
	handler := &recordingHandler{}
	r := New(testRelayConfig(ts.wsURL()), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return handler.connects.Load() >= 1 },
		2*time.Second, 10*time.Millisecond, "relay should connect and fire OnConnect")

	ts.mu.Lock()
	auth, path := ts.auth, ts.path
	ts.mu.Unlock()
	assert.Equal(t, "test-secret", auth)
	assert.Equal(t, devicePath, path)

	// Outbound: queued messages reach the server as JSON text frames.
	require.NoError(t, r.Send(ctx, schemas.Outbound{Type: schemas.TypePong}))
	require.Eventually(t, func() bool { return ts.receivedCount() >= 1 },
		2*time.Second, 10*time.Millisecond)
	ts.mu.Lock()
	first := string(ts.received[0])
	ts.mu.Unlock()
	assert.Contains(t, first, `"pong"`)

	// Inbound: server frames dispatch to the handler in order.
	conn := ts.lastConn()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.Eventually(t, func() bool { return handler.frameCount() >= 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

func TestRelay_ReconnectsAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	handler := &recordingHandler{}
	r := New(testRelayConfig(ts.wsURL()), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return handler.connects.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	// Drop the connection server-side; the relay should dial again.
	ts.lastConn().Close()

	require.Eventually(t, func() bool { return handler.connects.Load() >= 2 },
		3*time.Second, 10*time.Millisecond, "relay should reconnect after a drop")
	assert.GreaterOrEqual(t, ts.dials.Load(), int32(2))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

func TestRelay_SendAfterStop(t *testing.T) {
	ts := newTestServer(t)
	handler := &recordingHandler{}
	r := New(testRelayConfig(ts.wsURL()), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	require.Eventually(t, func() bool { return handler.connects.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	err := r.Send(context.Background(), schemas.Outbound{Type: schemas.TypePong})
	require.Error(t, err)
}
