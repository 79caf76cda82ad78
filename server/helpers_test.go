package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"scenerelay/model"
	"scenerelay/storage"
)

var connSeq int64

// recorder is a Peer that keeps every frame it is sent.
type recorder struct {
	id     ConnID
	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func newRecorder() *recorder {
	return &recorder{id: ConnID(fmt.Sprintf("conn-%d", atomic.AddInt64(&connSeq, 1)))}
}

func (p *recorder) ID() ConnID { return p.id }

func (p *recorder) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *recorder) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *recorder) Enqueue(b []byte) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.frames = append(p.frames, env)
	p.mu.Unlock()
}

// events returns the frames named event, in arrival order.
func (p *recorder) events(event string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Envelope
	for _, f := range p.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (p *recorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func (p *recorder) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

// fakeGateway counts calls and serves canned characters.
type fakeGateway struct {
	mu     sync.Mutex
	saved  map[string]model.SavedPlayer
	loads  int
	saves  int
	resets int

	loadErr  error
	saveErr  error
	resetErr error

	// block, when set, holds LoadPlayer for the identity until it is closed.
	blockID string
	entered chan struct{}
	block   chan struct{}
}

var _ storage.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{saved: make(map[string]model.SavedPlayer)}
}

func (g *fakeGateway) put(identity, nickname, scene string, pos *model.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saved[identity] = model.SavedPlayer{DisplayName: nickname, Position: pos, SceneName: scene}
}

func (g *fakeGateway) LoadPlayer(ctx context.Context, identity string) (*model.SavedPlayer, error) {
	g.mu.Lock()
	g.loads++
	block := g.block
	blocked := block != nil && identity == g.blockID
	g.mu.Unlock()

	if blocked {
		close(g.entered)
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	saved, ok := g.saved[identity]
	if !ok {
		return nil, storage.ErrPlayerNotFound
	}
	return &saved, nil
}

func (g *fakeGateway) SavePlayerScene(ctx context.Context, identity, scene string, pos model.Vec3) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saved[identity] = model.SavedPlayer{DisplayName: g.saved[identity].DisplayName, Position: &pos, SceneName: scene}
	return nil
}

func (g *fakeGateway) ResetPlayerOnDeath(ctx context.Context, identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
	return g.resetErr
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) counts() (loads, saves, resets int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loads, g.saves, g.resets
}

func newTestRelay(t *testing.T, gw storage.Gateway) *Relay {
	t.Helper()
	return NewRelay(gw, DefaultOptions(), zaptest.NewLogger(t).Sugar())
}

// send dispatches one client frame as the websocket reader would.
func send(r *Relay, p Peer, event string, data any) {
	r.Dispatch(context.Background(), p, encode(event, data))
}

// connect attaches a new recorder and initializes it as identity.
func connect(t *testing.T, r *Relay, identity string) *recorder {
	t.Helper()
	p := newRecorder()
	r.Connect(p)
	send(r, p, EventInitialize, map[string]any{"userId": identity, "nickname": identity})
	return p
}

// enter connects identity and joins the room of its scene.
func enter(t *testing.T, r *Relay, identity string) *recorder {
	t.Helper()
	p := connect(t, r, identity)
	send(r, p, EventLoadSceneComplete, nil)
	return p
}

func decodeRecord(t *testing.T, env Envelope) model.Record {
	t.Helper()
	var rec model.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return rec
}

func resetAll(peers ...*recorder) {
	for _, p := range peers {
		p.reset()
	}
}

var testPos = map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}
var testRot = map[string]any{"x": 0.0, "y": 90.0, "z": 0.0}
