package memory

import (
	"context"
	"sync"

	"scenerelay/model"
	"scenerelay/storage"
)

// Character is the in-memory equivalent of a characters row.
type Character struct {
	Nickname  string
	Position  *model.Vec3
	RotationY float64
	Scene     string
	Level     int
	Gold      int
	HP        int
	MaxHP     int
	Exp       int
}

// Storage is a thread-safe in-memory Gateway.
type Storage struct {
	mu            sync.RWMutex
	characters    map[string]*Character
	resetProgress bool
}

// Ensure Storage implements the interface
var _ storage.Gateway = (*Storage)(nil)

// New creates an empty store. resetProgress mirrors the postgres gateway's
// death policy.
func New(resetProgress bool) *Storage {
	return &Storage{
		characters:    make(map[string]*Character),
		resetProgress: resetProgress,
	}
}

// Put seeds or replaces a character.
func (s *Storage) Put(identity string, c Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[identity] = &c
}

// Character returns a copy of the saved character.
func (s *Storage) Character(identity string) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[identity]
	if !ok {
		return Character{}, false
	}
	return *c, true
}

func (s *Storage) LoadPlayer(ctx context.Context, identity string) (*model.SavedPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[identity]
	if !ok {
		return nil, storage.ErrPlayerNotFound
	}
	saved := &model.SavedPlayer{
		DisplayName: c.Nickname,
		RotationY:   c.RotationY,
		SceneName:   c.Scene,
	}
	if c.Position != nil {
		p := *c.Position
		saved.Position = &p
	}
	return saved, nil
}

// SavePlayerScene records where the player is, creating the character with
// starter stats the first time it is seen.
func (s *Storage) SavePlayerScene(ctx context.Context, identity, scene string, pos model.Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.characterLocked(identity)
	c.Scene = scene
	c.Position = &pos
	return nil
}

// ResetPlayerOnDeath sends the character back to spawn with full HP, also
// dropping its progress when configured to.
func (s *Storage) ResetPlayerOnDeath(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.characterLocked(identity)
	pos := model.DefaultPosition
	c.Scene = model.DefaultScene
	c.Position = &pos
	c.HP = c.MaxHP
	if s.resetProgress {
		c.Level = model.StarterLevel
		c.Gold = 0
		c.Exp = 0
	}
	return nil
}

func (s *Storage) characterLocked(identity string) *Character {
	c, ok := s.characters[identity]
	if !ok {
		c = &Character{
			Level: model.StarterLevel,
			Gold:  model.StarterGold,
			HP:    model.StarterMaxHP,
			MaxHP: model.StarterMaxHP,
		}
		s.characters[identity] = c
	}
	return c
}

func (s *Storage) Close() error { return nil }
