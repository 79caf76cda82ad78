package server

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"scenerelay/model"
)

// Broadcaster groups connections by scene and fans events out to
// co-located peers only. Scenes in the single-player set never form rooms.
type Broadcaster struct {
	mu       sync.RWMutex
	rooms    map[string]map[ConnID]Peer
	memberOf map[ConnID]string

	excluded map[string]struct{}
	registry *Registry
	players  *PlayerStore
	metrics  *RelayMetrics
	log      *zap.SugaredLogger
}

func NewBroadcaster(singlePlayer []string, registry *Registry, players *PlayerStore, metrics *RelayMetrics, log *zap.SugaredLogger) *Broadcaster {
	excluded := make(map[string]struct{}, len(singlePlayer))
	for _, s := range singlePlayer {
		excluded[s] = struct{}{}
	}
	return &Broadcaster{
		rooms:    make(map[string]map[ConnID]Peer),
		memberOf: make(map[ConnID]string),
		excluded: excluded,
		registry: registry,
		players:  players,
		metrics:  metrics,
		log:      log,
	}
}

// Excluded reports whether scene is single-player.
func (b *Broadcaster) Excluded(scene string) bool {
	_, ok := b.excluded[scene]
	return ok
}

// Join admits p to the room of rec's scene, sends it the peers already in
// that scene and announces it to them. The peer list comes from the player
// store, not from room membership.
func (b *Broadcaster) Join(p Peer, rec model.Record) {
	scene := rec.CurrentSceneName
	if b.Excluded(scene) {
		b.log.Debugw("single-player scene, no room", "player", rec.ID, "scene", scene)
		p.Enqueue(encode(EventCurrentPlayers, currentPlayers{Players: []model.Record{}}))
		return
	}

	b.mu.Lock()
	b.removeLocked(p.ID())
	room, ok := b.rooms[scene]
	if !ok {
		room = make(map[ConnID]Peer)
		b.rooms[scene] = room
	}
	room[p.ID()] = p
	b.memberOf[p.ID()] = scene
	b.mu.Unlock()

	others := b.players.InScene(scene, rec.ID)
	p.Enqueue(encode(EventCurrentPlayers, currentPlayers{Players: others}))
	b.fanout(scene, rec.ID, encode(EventNewPlayer, rec))
	b.log.Infow("player joined room", "player", rec.ID, "scene", scene, "peers", len(others))
}

// Leave drops the connection's room membership and tells the remaining
// members of scene that identity is gone.
func (b *Broadcaster) Leave(id ConnID, identity, scene string) {
	b.Forget(id)
	if scene == "" || b.Excluded(scene) {
		return
	}
	b.fanout(scene, identity, encode(EventPlayerDisconnected, identity))
}

// Forget drops room membership without notifying anyone.
func (b *Broadcaster) Forget(id ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Broadcaster) removeLocked(id ConnID) {
	scene, ok := b.memberOf[id]
	if !ok {
		return
	}
	delete(b.memberOf, id)
	room := b.rooms[scene]
	delete(room, id)
	if len(room) == 0 {
		delete(b.rooms, scene)
	}
}

// Relay forwards an event from identity to every other member of scene.
// Delivery is best effort: no ack, no retry.
func (b *Broadcaster) Relay(identity, scene, event string, payload json.RawMessage) {
	if scene == "" || b.Excluded(scene) {
		return
	}
	b.fanout(scene, identity, encode(event, payload))
}

// fanout sends msg to every member of scene not bound to except.
func (b *Broadcaster) fanout(scene, except string, msg []byte) {
	b.mu.RLock()
	room := b.rooms[scene]
	members := make([]Peer, 0, len(room))
	for _, p := range room {
		members = append(members, p)
	}
	b.mu.RUnlock()

	sent := 0
	for _, p := range members {
		if identity, ok := b.registry.Resolve(p.ID()); ok && identity == except {
			continue
		}
		p.Enqueue(msg)
		sent++
	}
	b.metrics.AddRelayed(sent)
}

// Members returns the sorted connection ids admitted to scene.
func (b *Broadcaster) Members(scene string) []ConnID {
	b.mu.RLock()
	room := b.rooms[scene]
	out := make([]ConnID, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoomOf returns the scene the connection is admitted to.
func (b *Broadcaster) RoomOf(id ConnID) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	scene, ok := b.memberOf[id]
	return scene, ok
}

// Rooms is the number of non-empty rooms.
func (b *Broadcaster) Rooms() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}
