package server

import (
	"context"
	"encoding/json"
	"errors"

	"scenerelay/model"
	"scenerelay/storage"
)

// Nickname defaults used when the client or the database gives none.
const (
	defaultNickname = "Guest"
	errorNickname   = "ErrorPlayer"
)

// Initialize binds p to the requested identity and answers with the
// player's record. An existing record is reused verbatim; otherwise guests
// get the spawn defaults plus a starter inventory and persisted players are
// loaded through the gateway, falling back to the spawn defaults. It never
// fails once an identity is present.
func (r *Relay) Initialize(ctx context.Context, p Peer, req InitRequest) {
	identity := req.UserID
	if identity == "" {
		r.metrics.IncIgnored()
		r.log.Warnw("initialize without identity", "conn", p.ID())
		return
	}
	nickname := req.Nickname
	if nickname == "" {
		nickname = defaultNickname
	}
	guest := req.IsGuest || r.IsGuestID(identity)

	r.bind(p, identity)
	unlock := r.locks.lock(identity)
	defer unlock()

	rec, reattached := r.players.CreateOrReattach(identity, func() model.Record {
		if guest {
			rec := model.DefaultRecord(identity, nickname, model.Guest())
			rec.Inventory = model.StarterInventory()
			return rec
		}
		return r.loadPersisted(ctx, identity, nickname)
	})

	if reattached {
		r.metrics.IncReattachments()
		r.log.Infow("player reattached", "player", identity, "kind", rec.Kind, "scene", rec.CurrentSceneName)
	} else {
		r.metrics.IncInitializations()
		r.log.Infow("player initialized", "player", identity, "kind", rec.Kind, "scene", rec.CurrentSceneName)
	}
	p.Enqueue(encode(EventInitializeComplete, rec))
}

func (r *Relay) loadPersisted(ctx context.Context, identity, nickname string) model.Record {
	r.metrics.IncGatewayLoads()
	gctx, cancel := r.gatewayContext(ctx)
	defer cancel()

	saved, err := r.gateway.LoadPlayer(gctx, identity)
	switch {
	case errors.Is(err, storage.ErrPlayerNotFound):
		r.log.Infow("no saved character, using spawn defaults", "player", identity)
		return model.DefaultRecord(identity, nickname, model.Persisted(identity))
	case err != nil:
		r.metrics.IncGatewayFailures()
		r.log.Errorw("load player failed, using spawn defaults", "player", identity, "error", err)
		return model.DefaultRecord(identity, errorNickname, model.Persisted(identity))
	}
	return model.FromSaved(identity, nickname, *saved)
}

// RequestSceneChange moves the sender's player to another scene and always
// answers with respawn, so the client redoes initialize and
// LoadSceneComplete once the new scene is loaded. A request missing scene or
// pos leaves the record untouched.
func (r *Relay) RequestSceneChange(ctx context.Context, p Peer, req SceneChangeRequest) {
	defer r.respawn(p)

	identity, ok := r.registry.Resolve(p.ID())
	if !ok {
		r.log.Warnw("scene change from unbound connection", "conn", p.ID())
		return
	}
	unlock := r.locks.lock(identity)
	defer unlock()

	rec, ok := r.players.Get(identity)
	if !ok {
		r.log.Warnw("scene change for unknown player", "player", identity)
		return
	}
	if req.Scene == "" || req.Pos == nil {
		r.log.Warnw("invalid scene change", "player", identity, "scene", req.Scene)
		return
	}

	oldScene := rec.CurrentSceneName
	if durableID, persisted := rec.Kind.DurableID(); persisted {
		gctx, cancel := r.gatewayContext(ctx)
		err := r.gateway.SavePlayerScene(gctx, durableID, req.Scene, *req.Pos)
		cancel()
		if err != nil {
			r.metrics.IncGatewayFailures()
			r.log.Errorw("save scene failed", "player", identity, "scene", req.Scene, "error", err)
		}
	}

	pos := *req.Pos
	r.players.Update(identity, func(rec *model.Record) {
		rec.CurrentSceneName = req.Scene
		rec.Position = pos
	})
	r.rooms.Leave(p.ID(), identity, oldScene)
	r.log.Infow("player changing scene", "player", identity, "from", oldScene, "to", req.Scene, "kind", rec.Kind)
}

// LoadSceneComplete admits the sender to the room of its current scene.
func (r *Relay) LoadSceneComplete(p Peer) {
	identity, ok := r.registry.Resolve(p.ID())
	if !ok {
		r.metrics.IncIgnored()
		return
	}
	unlock := r.locks.lock(identity)
	defer unlock()

	rec, ok := r.players.Get(identity)
	if !ok {
		r.metrics.IncIgnored()
		return
	}
	if rec.CurrentSceneName == "" {
		r.log.Errorw("player has no scene", "player", identity)
		return
	}
	r.rooms.Join(p, rec)
}

// PlayerMovement stores the sender's transform and relays it to its room.
func (r *Relay) PlayerMovement(p Peer, payload json.RawMessage) {
	var mv MovementUpdate
	if len(payload) == 0 || json.Unmarshal(payload, &mv) != nil || mv.Position == nil || mv.Rotation == nil {
		r.metrics.IncIgnored()
		return
	}
	r.withPlayer(p, func(identity string) {
		var scene string
		ok := r.players.Update(identity, func(rec *model.Record) {
			rec.Position = *mv.Position
			rec.Rotation = *mv.Rotation
			scene = rec.CurrentSceneName
		})
		if ok {
			r.rooms.Relay(identity, scene, EventUpdatePlayerMovement, withID(identity, payload))
		}
	})
}

// PlayerAnimation relays an opaque animation payload to the sender's room.
func (r *Relay) PlayerAnimation(p Peer, payload json.RawMessage) {
	r.withPlayer(p, func(identity string) {
		if rec, ok := r.players.Get(identity); ok {
			r.rooms.Relay(identity, rec.CurrentSceneName, EventUpdatePlayerAnimation, withID(identity, payload))
		}
	})
}

// PlayerAttack tells the sender's room that it attacked.
func (r *Relay) PlayerAttack(p Peer) {
	r.withPlayer(p, func(identity string) {
		if rec, ok := r.players.Get(identity); ok {
			r.rooms.Relay(identity, rec.CurrentSceneName, EventUpdateAttack, withID(identity, nil))
		}
	})
}

// PlayerDied sends the player back to the spawn point. Persisted players
// are reset through the gateway first; the in-memory reset happens even if
// that write fails.
func (r *Relay) PlayerDied(ctx context.Context, p Peer) {
	identity, ok := r.registry.Resolve(p.ID())
	if !ok {
		r.metrics.IncIgnored()
		return
	}
	unlock := r.locks.lock(identity)
	defer unlock()

	rec, ok := r.players.Get(identity)
	if !ok {
		r.metrics.IncIgnored()
		r.log.Warnw("death for unknown player", "player", identity)
		return
	}

	if durableID, persisted := rec.Kind.DurableID(); persisted {
		gctx, cancel := r.gatewayContext(ctx)
		err := r.gateway.ResetPlayerOnDeath(gctx, durableID)
		cancel()
		if err != nil {
			r.metrics.IncGatewayFailures()
			r.log.Errorw("reset on death failed", "player", identity, "error", err)
		}
	}

	r.players.Update(identity, func(rec *model.Record) {
		rec.Position = model.DefaultPosition
		rec.CurrentSceneName = model.DefaultScene
	})
	r.rooms.Leave(p.ID(), identity, rec.CurrentSceneName)
	r.log.Infow("player died", "player", identity, "kind", rec.Kind, "scene", rec.CurrentSceneName)
	r.respawn(p)
}

// Disconnect tears down everything the connection held: its player record,
// its room membership (notifying former peers) and its chat presence.
func (r *Relay) Disconnect(p Peer) {
	identity, ok := r.registry.Unbind(p.ID())
	if !ok {
		r.rooms.Forget(p.ID())
		r.log.Debugw("connection closed before identifying", "conn", p.ID())
		return
	}
	r.release(p.ID(), identity, true)
}

// Login binds p to the chat user and marks it online.
func (r *Relay) Login(p Peer, req LoginRequest) {
	if req.UserID == "" {
		r.metrics.IncIgnored()
		return
	}
	r.bind(p, req.UserID)
	r.chat.Login(p, req.UserID, req.Nickname)
}

// bind points p at identity. A connection switching identities gives up
// everything it held for the old one; the old player is torn down when no
// other connection still represents it. It runs before the new identity's
// lock is taken so two connections swapping identities cannot deadlock.
func (r *Relay) bind(p Peer, identity string) {
	replaced, orphaned := r.registry.Bind(p, identity)
	if replaced == "" {
		return
	}
	r.log.Infow("connection switched identity", "conn", p.ID(), "from", replaced, "to", identity)
	r.release(p.ID(), replaced, orphaned)
}

// release drops what connection id held for identity. With dropPlayer set
// the player record goes too and its room hears that it left.
func (r *Relay) release(id ConnID, identity string, dropPlayer bool) {
	if dropPlayer {
		unlock := r.locks.lock(identity)
		rec, hadRecord := r.players.Remove(identity)
		if hadRecord {
			r.rooms.Leave(id, identity, rec.CurrentSceneName)
			r.log.Infow("player disconnected", "player", identity, "scene", rec.CurrentSceneName)
		} else {
			r.rooms.Forget(id)
		}
		unlock()
	} else {
		r.rooms.Forget(id)
	}
	r.chat.Disconnect(id, identity)
}

// withPlayer runs fn under the identity lock of the player bound to p.
// Events from unbound connections are dropped.
func (r *Relay) withPlayer(p Peer, fn func(identity string)) {
	identity, ok := r.registry.Resolve(p.ID())
	if !ok {
		r.metrics.IncIgnored()
		return
	}
	unlock := r.locks.lock(identity)
	defer unlock()
	fn(identity)
}

func (r *Relay) respawn(p Peer) {
	r.metrics.IncRespawns()
	p.Enqueue(encode(EventRespawn, nil))
}
