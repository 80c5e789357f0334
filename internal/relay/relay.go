// File: internal/relay/relay.go
// Description: Outbound websocket link to the controller relay. The relay
// dials, authenticates, and keeps the connection alive with ping/pong
// deadlines; on any failure it reconnects on a fixed cadence. Only the
// transport is torn down between attempts, never the orchestrator state.
// Outbound messages queue in a bounded buffer and flush once a connection
// is up.

package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// authHeader carries the shared relay secret on the dial request.
const authHeader = "X-Relay-Auth"

// devicePath is the relay endpoint this service attaches to.
const devicePath = "/device"

const handshakeTimeout = 10 * time.Second

// Handler consumes inbound frames. HandleRaw is called from a single
// goroutine in arrival order; OnConnect fires after every successful dial.
type Handler interface {
	HandleRaw(ctx context.Context, raw []byte)
	OnConnect(ctx context.Context)
}

// Relay maintains the websocket session. It implements
// schemas.MessageSender for the orchestrator's outbound traffic.
type Relay struct {
	cfg     config.RelayConfig
	handler Handler
	logger  *zap.Logger

	send    chan []byte
	limiter *rate.Limiter

	mu      sync.Mutex
	stopped bool
}

var _ schemas.MessageSender = (*Relay)(nil)

// New creates a relay for the configured endpoint. Run must be called to
// start the connection loop.
func New(cfg config.RelayConfig, handler Handler, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Relay{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("relay"),
		send:    make(chan []byte, cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectDelay), 1),
	}
}

// Send serializes and queues one outbound message. It blocks while the
// buffer is full so bursts apply backpressure instead of dropping frames;
// cancellation or a stopped relay returns an error.
func (r *Relay) Send(ctx context.Context, msg any) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return fmt.Errorf("relay is stopped")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	select {
	case r.send <- data:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send canceled: %w", ctx.Err())
	}
}

// Run drives the connect/read/reconnect loop until the context is canceled.
func (r *Relay) Run(ctx context.Context) error {
	defer func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
	}()

	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := r.dial(ctx)
		if err != nil {
			r.logger.Error("connection failed",
				zap.String("url", r.cfg.URL), zap.Error(err))
			continue
		}
		r.logger.Info("connected", zap.String("url", r.cfg.URL))
		r.handler.OnConnect(ctx)

		r.session(ctx, conn)

		if ctx.Err() != nil {
			return nil
		}
		r.logger.Info("reconnecting",
			zap.Duration("delay", r.cfg.ReconnectDelay))
	}
}

func (r *Relay) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if r.cfg.AuthToken != "" {
		header.Set(authHeader, r.cfg.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, r.cfg.URL+devicePath, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// session owns one live connection: a write pump goroutine plus the inline
// read loop. It returns once either side fails; the caller reconnects.
func (r *Relay) session(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.writePump(conn, done)
	}()

	// Stop the writer when the context dies mid-session.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	r.readLoop(ctx, conn)
	close(done)
	wg.Wait()
}

func (r *Relay) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(r.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.cfg.PongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Warn("read error", zap.Error(err))
			}
			return
		}
		// Frames dispatch synchronously so handlers observe arrival order.
		r.handler.HandleRaw(ctx, message)
	}
}

func (r *Relay) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-r.send:
			conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				r.logger.Warn("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.logger.Warn("ping error", zap.Error(err))
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
