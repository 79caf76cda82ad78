package server

import (
	"errors"

	"scenerelay/model"
)

var (
	// ErrNotGuest is returned for inventory access to a persisted player;
	// their inventory lives in the database, not in the relay.
	ErrNotGuest = errors.New("inventory is only kept for guest players")
	// ErrPlayerNotActive is returned when the guest has no record.
	ErrPlayerNotActive = errors.New("player is not active")
	// ErrInvalidSlot is returned for an update without slotType or slotIndex.
	ErrInvalidSlot = errors.New("slotType and slotIndex are required")
)

// GuestInventory returns a copy of a guest's in-memory inventory. An
// unknown guest has an empty inventory.
func (r *Relay) GuestInventory(identity string) ([]model.InventorySlot, error) {
	rec, ok := r.players.Get(identity)
	if !ok {
		if !r.IsGuestID(identity) {
			return nil, ErrNotGuest
		}
		return []model.InventorySlot{}, nil
	}
	if !rec.Kind.IsGuest() {
		return nil, ErrNotGuest
	}
	if rec.Inventory == nil {
		return []model.InventorySlot{}, nil
	}
	return rec.Inventory, nil
}

// UpdateGuestInventory applies one slot write to a guest's inventory.
func (r *Relay) UpdateGuestInventory(identity string, upd model.SlotUpdate) error {
	unlock := r.locks.lock(identity)
	defer unlock()

	rec, ok := r.players.Get(identity)
	if !ok {
		if !r.IsGuestID(identity) {
			return ErrNotGuest
		}
		return ErrPlayerNotActive
	}
	if !rec.Kind.IsGuest() {
		return ErrNotGuest
	}
	if !upd.Valid() {
		return ErrInvalidSlot
	}
	r.players.Update(identity, func(rec *model.Record) {
		rec.Inventory = upd.Apply(rec.Inventory)
	})
	r.log.Debugw("guest inventory updated", "player", identity, "slotType", upd.NormalizedType(), "slotIndex", *upd.SlotIndex)
	return nil
}
