// Package live serves the dashboard session over a WebSocket.
//
// Each connection owns one session. The client sends intents:
//
//	{"type":"submit","handle":"alice"}
//	{"type":"reset"}
//
// and receives the rendered view after every state transition:
//
//	{"type":"state","view":{...}}
//
// Results of superseded submissions never reach the client. Malformed or
// unknown messages are answered with {"type":"error","message":"..."} and the
// connection stays open.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/contestlens/internal/domain/session"
	"github.com/okian/contestlens/internal/render"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageBytes = 4096
	errorBufSize    = 8
)

// Message types.
const (
	TypeSubmit = "submit"
	TypeReset  = "reset"
	TypeState  = "state"
	TypeError  = "error"
)

// Runner drives a session through one analysis.
type Runner interface {
	NewSession(opts ...session.Option) *session.Session
	Run(ctx context.Context, sess *session.Session, handle string) error
}

// ClientMessage is an intent sent by the browser.
type ClientMessage struct {
	Type   string `json:"type"`
	Handle string `json:"handle,omitempty"`
}

// ServerMessage is a frame pushed to the browser.
type ServerMessage struct {
	Type    string       `json:"type"`
	View    *render.View `json:"view,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Handler upgrades requests and serves one session per connection.
type Handler struct {
	runner   Runner
	logger   logger.Logger
	upgrader websocket.Upgrader
	active   atomic.Int64
	wg       sync.WaitGroup

	mu      sync.Mutex
	closing bool
	conns   map[*websocket.Conn]struct{}
}

// New creates a Handler running analyses through runner.
func New(runner Runner, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		runner: runner,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Same-origin is not enforced; apply CORS at the reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Count returns the number of open connections.
func (h *Handler) Count() int {
	return int(h.active.Load())
}

// Wait blocks until every analysis started by a connection has returned.
// Call it after Shutdown so no new analysis can start.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Shutdown closes every open connection and refuses new connections and
// submissions. Hijacked connections are not closed by http.Server.Shutdown.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for conn := range h.conns {
		_ = conn.Close()
	}
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

// begin registers an analysis with the wait group unless shutting down.
// Add happens under mu so it never races with Wait after Shutdown.
func (h *Handler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and blocks until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	if !h.track(conn) {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		notify: make(chan struct{}, 1),
		errs:   make(chan []byte, errorBufSize),
		done:   make(chan struct{}),
	}
	sess := h.runner.NewSession(session.WithObserver(c.publish))

	h.active.Add(1)
	metrics.SessionOpened()
	h.logger.Info(ctx, "live session opened",
		logger.String("session", sess.ID()),
		logger.String("remote", r.RemoteAddr),
	)
	defer func() {
		cancel()
		sess.Close()
		h.untrack(conn)
		h.active.Add(-1)
		metrics.SessionClosed()
		h.logger.Info(ctx, "live session closed", logger.String("session", sess.ID()))
	}()

	// Send the idle state right away so the UI can render.
	c.publish(sess.State())

	go c.writePump()
	h.readPump(ctx, c, sess) // blocks until connection closes
}

func (h *Handler) readPump(ctx context.Context, c *client, sess *session.Session) {
	defer func() {
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(ctx, "live read failed", logger.String("session", sess.ID()), logger.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail("malformed message")
			continue
		}

		switch msg.Type {
		case TypeSubmit:
			if !h.begin() {
				c.fail("server is shutting down")
				continue
			}
			metrics.RecordLiveSubmission()
			go func(handle string) {
				defer h.wg.Done()
				h.run(ctx, sess, handle)
			}(msg.Handle)
		case TypeReset:
			sess.Reset()
		default:
			c.fail(fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (h *Handler) run(ctx context.Context, sess *session.Session, handle string) {
	err := h.runner.Run(ctx, sess, handle)
	switch {
	case err == nil, errors.Is(err, session.ErrBlankHandle), errors.Is(err, session.ErrStale):
	default:
		h.logger.Debug(ctx, "live analysis failed",
			logger.String("session", sess.ID()),
			logger.String("handle", handle),
			logger.Error(err),
		)
	}
}

// client is one connected browser. State frames are coalesced: only the most
// recent one is kept, so a slow reader never blocks the session.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	latest []byte
	notify chan struct{}

	errs chan []byte
	done chan struct{}
}

// publish is the session observer. It runs under the session lock and must
// not block.
func (c *client) publish(st session.State) {
	view := render.NewView(st)
	data, err := json.Marshal(ServerMessage{Type: TypeState, View: &view})
	if err != nil {
		return
	}

	c.mu.Lock()
	c.latest = data
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *client) fail(message string) {
	data, err := json.Marshal(ServerMessage{Type: TypeError, Message: message})
	if err != nil {
		return
	}
	select {
	case c.errs <- data:
	default:
		// Client is not draining; drop the error frame.
	}
}

func (c *client) take() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.latest
	c.latest = nil
	return data
}

// writePump forwards frames to the connection and sends periodic pings.
// Runs in its own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.notify:
			if data := c.take(); data != nil {
				if !c.write(websocket.TextMessage, data) {
					return
				}
			}

		case data := <-c.errs:
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *client) write(kind int, data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data) == nil
}
