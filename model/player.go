package model

// Vec3 is a position or euler rotation as sent by the game client.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Kind tells guest players apart from players backed by the database.
// It is decided once during initialize and carried on the Record.
type Kind struct {
	persisted bool
	durableID string
}

// Guest returns the Kind of an ephemeral, never persisted player.
func Guest() Kind { return Kind{} }

// Persisted returns the Kind of a database backed player.
func Persisted(durableID string) Kind {
	return Kind{persisted: true, durableID: durableID}
}

func (k Kind) IsGuest() bool { return !k.persisted }

// DurableID is the key the Persistence Gateway knows the player by.
func (k Kind) DurableID() (string, bool) {
	return k.durableID, k.persisted
}

func (k Kind) String() string {
	if k.persisted {
		return "persisted"
	}
	return "guest"
}

// Record is the relay's in-memory view of one active player.
// The JSON shape is what the Unity client reads from initializeComplete,
// currentPlayers and newPlayer.
type Record struct {
	ID               string          `json:"id"`
	Nickname         string          `json:"nickname"`
	Position         Vec3            `json:"position"`
	Rotation         Vec3            `json:"rotation"`
	CurrentSceneName string          `json:"currentSceneName"`
	Inventory        []InventorySlot `json:"inventory,omitempty"`

	Kind Kind `json:"-"`
}

// Clone returns a deep copy so callers never share the inventory slice.
func (r Record) Clone() Record {
	if r.Inventory != nil {
		inv := make([]InventorySlot, len(r.Inventory))
		for i, s := range r.Inventory {
			inv[i] = s.clone()
		}
		r.Inventory = inv
	}
	return r
}

// SavedPlayer is what the Persistence Gateway knows about a persisted player.
// Nil Position and empty SceneName mean "no saved value".
type SavedPlayer struct {
	DisplayName string
	Position    *Vec3
	RotationY   float64
	SceneName   string
}
