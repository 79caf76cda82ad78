package model

import (
	"encoding/json"
	"strconv"
)

// Slot types understood by the client inventory UI.
const (
	SlotEquipment   = "Equipment"
	SlotConsumption = "Consumption"
	SlotOther       = "Other"
	SlotProfile     = "Profile"
	SlotQuick       = "Quick"
)

// InventorySlot is one occupied slot of a guest inventory.
type InventorySlot struct {
	SlotIndex int             `json:"slotIndex"`
	SlotType  string          `json:"slotType"`
	ItemID    int             `json:"itemId"`
	ItemCount int             `json:"itemCount"`
	ItemSpec  json.RawMessage `json:"itemSpec,omitempty"`
}

func (s InventorySlot) clone() InventorySlot {
	if s.ItemSpec != nil {
		s.ItemSpec = append(json.RawMessage(nil), s.ItemSpec...)
	}
	return s
}

// StarterInventory is handed to every fresh guest.
func StarterInventory() []InventorySlot {
	return []InventorySlot{
		{
			SlotIndex: 1,
			SlotType:  SlotEquipment,
			ItemID:    101,
			ItemCount: 1,
			ItemSpec:  json.RawMessage(`{"damage":5,"defense":10,"hp":10}`),
		},
		{
			SlotIndex: 0,
			SlotType:  SlotConsumption,
			ItemID:    1,
			ItemCount: 10,
			ItemSpec:  json.RawMessage(`{"hp":10}`),
		},
	}
}

// SlotUpdate is one slot write sent by the client inventory UI.
// SlotType may arrive as a name or as the UI's numeric enum.
type SlotUpdate struct {
	SlotType  json.RawMessage `json:"slotType"`
	SlotIndex *int            `json:"slotIndex"`
	ItemID    int             `json:"itemId"`
	ItemCount int             `json:"itemCount"`
	ItemSpec  json.RawMessage `json:"itemSpec"`
	HasItem   *bool           `json:"hasItem"`
}

var numericSlotTypes = map[int]string{
	0: SlotEquipment,
	1: SlotConsumption,
	2: SlotOther,
	3: SlotProfile,
	4: SlotQuick,
	5: SlotEquipment,
}

// Valid reports whether the update names a slot at all.
func (u SlotUpdate) Valid() bool {
	return len(u.SlotType) > 0 && string(u.SlotType) != "null" && u.SlotIndex != nil
}

// NormalizedType resolves the slot type the same way the client does:
// numeric enums map through the UI table, unknown numbers become Other and
// an empty name is guessed from the item id range.
func (u SlotUpdate) NormalizedType() string {
	var n int
	if err := json.Unmarshal(u.SlotType, &n); err == nil {
		return slotTypeFromNumber(n)
	}
	var name string
	_ = json.Unmarshal(u.SlotType, &name)
	if name != "" {
		if n, err := strconv.Atoi(name); err == nil {
			return slotTypeFromNumber(n)
		}
		return name
	}
	switch id := u.ItemID; {
	case id >= 1 && id <= 9:
		return SlotConsumption
	case id >= 101 && id <= 110, id >= 201 && id <= 210, id >= 301 && id <= 310:
		return SlotEquipment
	default:
		return SlotOther
	}
}

func slotTypeFromNumber(n int) string {
	if t, ok := numericSlotTypes[n]; ok {
		return t
	}
	return SlotOther
}

// Apply writes the update into inv and returns the new slice. hasItem=false
// or a zero item id clears the slot.
func (u SlotUpdate) Apply(inv []InventorySlot) []InventorySlot {
	slotType := u.NormalizedType()
	idx := -1
	for i, s := range inv {
		if s.SlotType == slotType && s.SlotIndex == *u.SlotIndex {
			idx = i
			break
		}
	}

	if (u.HasItem != nil && !*u.HasItem) || u.ItemID == 0 {
		if idx >= 0 {
			inv = append(inv[:idx], inv[idx+1:]...)
		}
		return inv
	}

	spec := u.ItemSpec
	if len(spec) == 0 || string(spec) == "null" {
		spec = json.RawMessage(`{}`)
	}
	slot := InventorySlot{
		SlotIndex: *u.SlotIndex,
		SlotType:  slotType,
		ItemID:    u.ItemID,
		ItemCount: u.ItemCount,
		ItemSpec:  append(json.RawMessage(nil), spec...),
	}
	if idx >= 0 {
		inv[idx] = slot
		return inv
	}
	return append(inv, slot)
}
