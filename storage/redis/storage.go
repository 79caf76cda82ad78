package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scenerelay/model"
	"scenerelay/storage"
)

// Storage is a Redis-backed Gateway keeping each character in a hash.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// Ensure Storage implements the interface
var _ storage.Gateway = (*Storage)(nil)

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) LoadPlayer(ctx context.Context, identity string) (*model.SavedPlayer, error) {
	fields, err := s.client.HGetAll(ctx, characterKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", identity, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrPlayerNotFound
	}

	saved := &model.SavedPlayer{
		DisplayName: fields[fieldNickname],
		SceneName:   fields[fieldScene],
	}
	x, okX := parseFloat(fields, fieldPosX)
	y, okY := parseFloat(fields, fieldPosY)
	z, okZ := parseFloat(fields, fieldPosZ)
	if okX || okY || okZ {
		pos := model.DefaultPosition
		if okX {
			pos.X = x
		}
		if okY {
			pos.Y = y
		}
		if okZ {
			pos.Z = z
		}
		saved.Position = &pos
	}
	if rot, ok := parseFloat(fields, fieldRotY); ok {
		saved.RotationY = rot
	}
	return saved, nil
}

// SavePlayerScene records where the player is. A character seen for the
// first time is created with starter stats in the same transaction.
func (s *Storage) SavePlayerScene(ctx context.Context, identity, scene string, pos model.Vec3) error {
	key := characterKey(identity)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		seedCharacter(ctx, pipe, key)
		pipe.HSet(ctx, key,
			fieldScene, scene,
			fieldPosX, pos.X,
			fieldPosY, pos.Y,
			fieldPosZ, pos.Z,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save scene for %s: %w", identity, err)
	}
	return nil
}

// ResetPlayerOnDeath sends the character back to spawn with full HP. The
// max_hp read and the write happen under WATCH, retried on conflict.
func (s *Storage) ResetPlayerOnDeath(ctx context.Context, identity string) error {
	key := characterKey(identity)
	reset := func(tx *redis.Tx) error {
		maxHP, err := tx.HGet(ctx, key, fieldMaxHP).Int()
		if errors.Is(err, redis.Nil) {
			maxHP = model.StarterMaxHP
		} else if err != nil {
			return fmt.Errorf("read max hp: %w", err)
		}

		pos := model.DefaultPosition
		values := []any{
			fieldScene, model.DefaultScene,
			fieldPosX, pos.X,
			fieldPosY, pos.Y,
			fieldPosZ, pos.Z,
			fieldHP, maxHP,
		}
		if s.cfg.ResetProgressOnDeath {
			values = append(values, fieldLevel, model.StarterLevel, fieldGold, 0, fieldExp, 0)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			seedCharacter(ctx, pipe, key)
			pipe.HSet(ctx, key, values...)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, reset, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("reset %s on death: %w", identity, err)
	}
	return nil
}

// seedCharacter queues the starter stats without touching fields that are
// already set.
func seedCharacter(ctx context.Context, pipe redis.Pipeliner, key string) {
	pipe.HSetNX(ctx, key, fieldLevel, model.StarterLevel)
	pipe.HSetNX(ctx, key, fieldGold, model.StarterGold)
	pipe.HSetNX(ctx, key, fieldHP, model.StarterMaxHP)
	pipe.HSetNX(ctx, key, fieldMaxHP, model.StarterMaxHP)
	pipe.HSetNX(ctx, key, fieldExp, 0)
}

func parseFloat(fields map[string]string, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
