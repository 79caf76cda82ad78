package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 5 * time.Second
	defaultPongWait = 60 * time.Second
	maxFrameSize    = 1 << 20 // 1MB
)

// ClientConn is the websocket side of one connection: a buffered send queue
// drained by its own writer goroutine.
type ClientConn struct {
	id     ConnID
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	onDrop func()
}

func NewClientConn(ws *websocket.Conn, queueSize int, onDrop func()) *ClientConn {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &ClientConn{
		id:     ConnID(uuid.NewString()),
		ws:     ws,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
}

func (c *ClientConn) ID() ConnID { return c.id }

// Enqueue queues a frame without blocking; when the queue is full the frame
// is dropped, since stale telemetry is worthless.
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	case <-c.done:
	default:
		c.onDrop()
	}
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump drains the send queue to the socket and pings the client so
// dead connections are noticed by the reader's deadline.
func (c *ClientConn) writePump(pongWait time.Duration) {
	ticker := time.NewTicker(pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump hands every frame to the relay in arrival order. When it returns
// the relay tears the connection down.
func (c *ClientConn) readPump(ctx context.Context, relay *Relay, pongWait time.Duration) {
	defer func() {
		relay.Disconnect(c)
		c.Close()
	}()
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				relay.log.Debugw("websocket read error", "conn", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		relay.Dispatch(ctx, c, payload)
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// no list configured: allow every origin (local development)
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// HandleWS upgrades the request and runs the connection until it closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("upgrade error", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClientConn(ws, s.opts.SendQueueSize, s.relay.metrics.IncQueueDropped)
	s.relay.Connect(client)

	s.readers.Add(1)
	go client.writePump(s.opts.PongWait)
	go func() {
		defer s.readers.Done()
		client.readPump(s.baseCtx, s.relay, s.opts.PongWait)
	}()
}
