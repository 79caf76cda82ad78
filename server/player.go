package server

import (
	"sort"
	"sync"

	"scenerelay/model"
)

// Loader builds a fresh record for an identity the store does not hold yet.
// It may block on the Persistence Gateway.
type Loader func() model.Record

// PlayerStore is the single source of truth for where each active player is.
// Readers always get copies.
type PlayerStore struct {
	mu      sync.RWMutex
	records map[string]*model.Record
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{records: make(map[string]*model.Record)}
}

// Get returns a copy of the identity's record.
func (s *PlayerStore) Get(identity string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[identity]
	if !ok {
		return model.Record{}, false
	}
	return rec.Clone(), true
}

// CreateOrReattach returns the existing record unchanged, or stores the
// loader's result. The loader runs without the store lock held; if another
// caller inserted first, that record wins and reattached is true.
func (s *PlayerStore) CreateOrReattach(identity string, load Loader) (rec model.Record, reattached bool) {
	if existing, ok := s.Get(identity); ok {
		return existing, true
	}

	fresh := load()
	fresh.ID = identity

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[identity]; ok {
		return existing.Clone(), true
	}
	stored := fresh.Clone()
	s.records[identity] = &stored
	return fresh, false
}

// Update mutates the record in place. It reports false, doing nothing, when
// the identity has no record.
func (s *PlayerStore) Update(identity string, mutate func(*model.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identity]
	if !ok {
		return false
	}
	mutate(rec)
	return true
}

// Remove deletes and returns the record.
func (s *PlayerStore) Remove(identity string) (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identity]
	if !ok {
		return model.Record{}, false
	}
	delete(s.records, identity)
	return *rec, true
}

// InScene lists every record in scene except the one for except, ordered by id.
func (s *PlayerStore) InScene(scene, except string) []model.Record {
	s.mu.RLock()
	out := make([]model.Record, 0)
	for id, rec := range s.records {
		if id != except && rec.CurrentSceneName == scene {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Scenes maps each occupied scene to the sorted ids of players in it.
func (s *PlayerStore) Scenes() map[string][]string {
	s.mu.RLock()
	out := make(map[string][]string)
	for id, rec := range s.records {
		out[rec.CurrentSceneName] = append(out[rec.CurrentSceneName], id)
	}
	s.mu.RUnlock()

	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

func (s *PlayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
