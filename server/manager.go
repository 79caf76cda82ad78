package server

import "sync"

// ConnID identifies one live transport connection.
type ConnID string

// Peer is the sending side of a connection.
type Peer interface {
	ID() ConnID
	// Enqueue queues a frame without blocking; a full queue drops it.
	Enqueue(msg []byte)
	// Close drops the connection; its reader then runs the disconnect.
	Close()
}

// Registry maps live connections to the identity they currently represent
// and back. It never touches player records or rooms.
type Registry struct {
	mu         sync.RWMutex
	peers      map[ConnID]Peer
	identities map[ConnID]string
	conns      map[string]map[ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		peers:      make(map[ConnID]Peer),
		identities: make(map[ConnID]string),
		conns:      make(map[string]map[ConnID]struct{}),
	}
}

// Attach records a live connection that has not identified itself yet.
func (r *Registry) Attach(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

// Bind records that p represents identity. Rebinding the same pair is a
// no-op; binding to a different identity replaces the old association and
// returns the replaced identity, with orphaned set when no other connection
// is still bound to it.
func (r *Registry) Bind(p Peer, identity string) (replaced string, orphaned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	r.peers[id] = p
	if prev, ok := r.identities[id]; ok {
		if prev == identity {
			return "", false
		}
		r.dropConnLocked(prev, id)
		replaced = prev
		orphaned = len(r.conns[prev]) == 0
	}
	r.identities[id] = identity
	set, ok := r.conns[identity]
	if !ok {
		set = make(map[ConnID]struct{})
		r.conns[identity] = set
	}
	set[id] = struct{}{}
	return replaced, orphaned
}

// Resolve returns the identity bound to a connection.
func (r *Registry) Resolve(id ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[id]
	return identity, ok
}

// Unbind forgets the connection and returns the identity it was bound to.
func (r *Registry) Unbind(id ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
	identity, ok := r.identities[id]
	if !ok {
		return "", false
	}
	delete(r.identities, id)
	r.dropConnLocked(identity, id)
	return identity, true
}

func (r *Registry) dropConnLocked(identity string, id ConnID) {
	set := r.conns[identity]
	delete(set, id)
	if len(set) == 0 {
		delete(r.conns, identity)
	}
}

// ConnectionsFor returns every live connection bound to identity.
func (r *Registry) ConnectionsFor(identity string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[identity]
	out := make([]Peer, 0, len(set))
	for id := range set {
		if p, ok := r.peers[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Peer looks up a live connection.
func (r *Registry) Peer(id ConnID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// Peers returns every live connection, bound or not.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Len is the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
