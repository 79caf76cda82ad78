package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"scenerelay/storage"
)

// Options configures a Relay.
type Options struct {
	GuestPrefix        string
	SinglePlayerScenes []string
	// GatewayTimeout bounds each Persistence Gateway call.
	GatewayTimeout time.Duration
	// Now is the clock used for chat timestamps.
	Now func() time.Time
}

// DefaultOptions mirrors the game client's built-in expectations.
func DefaultOptions() Options {
	return Options{
		GuestPrefix:        "guest_",
		SinglePlayerScenes: []string{"Combat"},
		GatewayTimeout:     5 * time.Second,
		Now:                time.Now,
	}
}

// Relay owns all presence state for one server: the connection registry,
// the player store, the scene rooms and chat presence. Independent
// instances share nothing.
type Relay struct {
	opts    Options
	gateway storage.Gateway
	log     *zap.SugaredLogger

	registry *Registry
	players  *PlayerStore
	rooms    *Broadcaster
	chat     *Chat
	metrics  *RelayMetrics
	locks    *identityLocks
}

func NewRelay(gateway storage.Gateway, opts Options, log *zap.SugaredLogger) *Relay {
	if opts.GuestPrefix == "" {
		opts.GuestPrefix = DefaultOptions().GuestPrefix
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = DefaultOptions().GatewayTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	metrics := &RelayMetrics{}
	registry := NewRegistry()
	players := NewPlayerStore()
	return &Relay{
		opts:     opts,
		gateway:  gateway,
		log:      log,
		registry: registry,
		players:  players,
		rooms:    NewBroadcaster(opts.SinglePlayerScenes, registry, players, metrics, log),
		chat:     NewChat(registry, opts.Now, log),
		metrics:  metrics,
		locks:    newIdentityLocks(),
	}
}

func (r *Relay) Registry() *Registry { return r.registry }
func (r *Relay) Players() *PlayerStore { return r.players }
func (r *Relay) Rooms() *Broadcaster { return r.rooms }
func (r *Relay) Metrics() *RelayMetrics { return r.metrics }
func (r *Relay) IsGuestID(id string) bool { return strings.HasPrefix(id, r.opts.GuestPrefix) }
func (r *Relay) GuestPrefix() string { return r.opts.GuestPrefix }

// Connect registers a freshly accepted connection.
func (r *Relay) Connect(p Peer) {
	r.registry.Attach(p)
	r.metrics.IncConnections()
	r.log.Debugw("connection opened", "conn", p.ID())
}

// CloseAll drops every live connection.
func (r *Relay) CloseAll() {
	peers := r.registry.Peers()
	for _, p := range peers {
		p.Close()
	}
	r.log.Infow("closed live connections", "count", len(peers))
}

// Dispatch decodes one frame from p and runs the matching handler to
// completion. Frames that cannot be decoded are ignored.
func (r *Relay) Dispatch(ctx context.Context, p Peer, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.metrics.IncIgnored()
		r.log.Debugw("undecodable frame", "conn", p.ID(), "error", err)
		return
	}

	switch env.Event {
	case EventLogin:
		var req LoginRequest
		if !r.decode(p, env, &req) {
			return
		}
		r.Login(p, req)
	case EventChatMessage:
		var req ChatRequest
		if !r.decode(p, env, &req) {
			return
		}
		r.chat.Message(p, req.Message)
	case EventChatDirect:
		var req DirectRequest
		if !r.decode(p, env, &req) {
			return
		}
		r.chat.Direct(p, req.ToUserID, req.Message)
	case EventInitialize:
		var req InitRequest
		if !r.decode(p, env, &req) {
			return
		}
		r.Initialize(ctx, p, req)
	case EventRequestSceneChange:
		r.metrics.IncReceived()
		// a malformed body still has to answer with respawn
		var req SceneChangeRequest
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &req); err != nil {
				req = SceneChangeRequest{}
			}
		}
		r.RequestSceneChange(ctx, p, req)
	case EventLoadSceneComplete:
		r.metrics.IncReceived()
		r.LoadSceneComplete(p)
	case EventPlayerMovement:
		r.metrics.IncReceived()
		r.PlayerMovement(p, env.Data)
	case EventPlayerAnimation:
		r.metrics.IncReceived()
		r.PlayerAnimation(p, env.Data)
	case EventPlayerAttack:
		r.metrics.IncReceived()
		r.PlayerAttack(p)
	case EventPlayerDied:
		r.metrics.IncReceived()
		r.PlayerDied(ctx, p)
	default:
		r.metrics.IncIgnored()
		r.log.Debugw("unknown event", "conn", p.ID(), "event", env.Event)
	}
}

func (r *Relay) decode(p Peer, env Envelope, v any) bool {
	if len(env.Data) == 0 {
		r.metrics.IncIgnored()
		r.log.Warnw("event without payload", "conn", p.ID(), "event", env.Event)
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		r.metrics.IncIgnored()
		r.log.Warnw("invalid payload", "conn", p.ID(), "event", env.Event, "error", err)
		return false
	}
	r.metrics.IncReceived()
	return true
}

// Stats summarizes relay state for the metrics endpoint.
func (r *Relay) Stats() map[string]any {
	return map[string]any{
		"connections_live": r.registry.Len(),
		"players":          r.players.Len(),
		"rooms":            r.rooms.Rooms(),
		"online_users":     r.chat.Len(),
		"counters":         r.metrics.Snapshot(),
	}
}

func (r *Relay) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opts.GatewayTimeout)
}

// identityLocks serializes handlers per player identity, so two connections
// of the same player never mutate its record concurrently. Unrelated
// identities never wait on each other.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*identityLock)}
}

// lock blocks until identity is free and returns the matching unlock.
func (l *identityLocks) lock(identity string) func() {
	l.mu.Lock()
	il, ok := l.locks[identity]
	if !ok {
		il = &identityLock{}
		l.locks[identity] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, identity)
		}
		l.mu.Unlock()
	}
}
