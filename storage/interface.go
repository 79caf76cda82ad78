package storage

import (
	"context"
	"errors"

	"scenerelay/model"
)

// ErrPlayerNotFound is returned by LoadPlayer when no character is saved
// for the identity.
var ErrPlayerNotFound = errors.New("player not found")

// Gateway is the durable-storage boundary the relay reads from and writes
// through. Guests never reach it.
type Gateway interface {
	LoadPlayer(ctx context.Context, identity string) (*model.SavedPlayer, error)
	SavePlayerScene(ctx context.Context, identity, scene string, pos model.Vec3) error
	ResetPlayerOnDeath(ctx context.Context, identity string) error
	Close() error
}
