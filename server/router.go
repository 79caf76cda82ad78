package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerOptions configures the HTTP and websocket surface.
type ServerOptions struct {
	AllowedOrigins []string
	SendQueueSize  int
	// PongWait is how long a connection may stay silent before it is dropped.
	PongWait time.Duration
	// StaticDir, when set, is served at / for the companion website.
	StaticDir string
}

// Server exposes a Relay over HTTP.
type Server struct {
	relay    *Relay
	opts     ServerOptions
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
	// baseCtx outlives individual connections so a gateway write started by
	// a connection finishes even if that connection drops.
	baseCtx context.Context
	// readers counts running read loops.
	readers sync.WaitGroup
}

func NewServer(ctx context.Context, relay *Relay, opts ServerOptions, log *zap.SugaredLogger) *Server {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 64
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &Server{
		relay:    relay,
		opts:     opts,
		upgrader: newUpgrader(opts.AllowedOrigins),
		log:      log,
		baseCtx:  ctx,
	}
}

// CloseConnections drops every websocket and waits until their read loops,
// and with them any in-flight gateway calls, have finished. http.Server's
// Shutdown does not cover hijacked connections, so call this before
// closing the gateway.
func (s *Server) CloseConnections(ctx context.Context) error {
	s.relay.CloseAll()
	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(recoverPanics(s.log))
	api.Use(logRequests(s.log))
	api.HandleFunc("/metrics", s.HandleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/admin/scenes", s.HandleScenes).Methods(http.MethodGet)
	api.HandleFunc("/api/guest", s.HandleIssueGuest).Methods(http.MethodPost)
	api.HandleFunc("/playerData/inventory/{userId}", s.HandleGetInventory).Methods(http.MethodGet)
	api.HandleFunc("/playerData/inventory/{userId}", s.HandlePostInventory).Methods(http.MethodPost)

	if s.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}
