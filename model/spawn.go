package model

// Spawn policy shared with the game client, which has no fallback of its own.
const DefaultScene = "Main"

// DefaultPosition is where fresh and respawning players are placed.
var DefaultPosition = Vec3{X: -15.76, Y: 3.866, Z: 49.78}

// Stats a character starts with when a store first sees it. They match the
// column defaults of the characters and character_stats tables.
const (
	StarterLevel = 1
	StarterGold  = 500
	StarterMaxHP = 100
)

// DefaultRecord builds a record at the default spawn point.
func DefaultRecord(id, nickname string, kind Kind) Record {
	return Record{
		ID:               id,
		Nickname:         nickname,
		Position:         DefaultPosition,
		Rotation:         Vec3{},
		CurrentSceneName: DefaultScene,
		Kind:             kind,
	}
}

// FromSaved builds a persisted player's record, filling unsaved fields from
// the spawn defaults.
func FromSaved(id, nickname string, saved SavedPlayer) Record {
	r := DefaultRecord(id, nickname, Persisted(id))
	if saved.DisplayName != "" {
		r.Nickname = saved.DisplayName
	}
	if saved.Position != nil {
		r.Position = *saved.Position
	}
	r.Rotation.Y = saved.RotationY
	if saved.SceneName != "" {
		r.CurrentSceneName = saved.SceneName
	}
	return r
}
