package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenerelay/model"
	"scenerelay/storage"
)

// Config holds the pool settings for the postgres gateway.
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32

	// ResetProgressOnDeath also drops level, gold and experience on death.
	ResetProgressOnDeath bool
}

// Storage is a pgx-backed Gateway over the characters tables.
type Storage struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Ensure Storage implements the interface
var _ storage.Gateway = (*Storage)(nil)

// New opens a pool and verifies it with a ping.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Storage{pool: pool, cfg: cfg}, nil
}

// NewWithPool wraps an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool, cfg Config) *Storage {
	return &Storage{pool: pool, cfg: cfg}
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

const loadPlayerSQL = `
SELECT c.character_name, u.nickname,
       c.position_x, c.position_y, c.position_z, c.rotation_y,
       c.current_scene_name
  FROM characters c
  LEFT JOIN users u ON c.user_id = u.user_id
 WHERE c.user_id = $1`

func (s *Storage) LoadPlayer(ctx context.Context, identity string) (*model.SavedPlayer, error) {
	var (
		charName         string
		nickname, scene  *string
		px, py, pz, rotY *float64
	)
	err := s.pool.QueryRow(ctx, loadPlayerSQL, identity).
		Scan(&charName, &nickname, &px, &py, &pz, &rotY, &scene)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("load player %s: %w", identity, err)
	}

	saved := &model.SavedPlayer{DisplayName: charName}
	if nickname != nil && *nickname != "" {
		saved.DisplayName = *nickname
	}
	if px != nil || py != nil || pz != nil {
		pos := model.DefaultPosition
		if px != nil {
			pos.X = *px
		}
		if py != nil {
			pos.Y = *py
		}
		if pz != nil {
			pos.Z = *pz
		}
		saved.Position = &pos
	}
	if rotY != nil {
		saved.RotationY = *rotY
	}
	if scene != nil {
		saved.SceneName = *scene
	}
	return saved, nil
}

const saveSceneSQL = `
UPDATE characters
   SET current_scene_name = $1, position_x = $2, position_y = $3, position_z = $4
 WHERE user_id = $5`

func (s *Storage) SavePlayerScene(ctx context.Context, identity, scene string, pos model.Vec3) error {
	tag, err := s.pool.Exec(ctx, saveSceneSQL, scene, pos.X, pos.Y, pos.Z, identity)
	if err != nil {
		return fmt.Errorf("save scene for %s: %w", identity, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPlayerNotFound
	}
	return nil
}

const (
	resetPositionSQL = `
UPDATE characters
   SET current_scene_name = $1, position_x = $2, position_y = $3, position_z = $4
 WHERE user_id = $5`

	resetProgressSQL = `
UPDATE characters SET level = 1, gold = 0 WHERE user_id = $1`

	restoreStatsSQL = `
UPDATE character_stats
   SET current_hp = max_hp
 WHERE character_id = (SELECT character_id FROM characters WHERE user_id = $1 LIMIT 1)`

	resetExperienceSQL = `
UPDATE character_stats
   SET experience = 0
 WHERE character_id = (SELECT character_id FROM characters WHERE user_id = $1 LIMIT 1)`
)

func (s *Storage) ResetPlayerOnDeath(ctx context.Context, identity string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		pos := model.DefaultPosition
		tag, err := tx.Exec(ctx, resetPositionSQL, model.DefaultScene, pos.X, pos.Y, pos.Z, identity)
		if err != nil {
			return fmt.Errorf("reset position for %s: %w", identity, err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrPlayerNotFound
		}
		if _, err := tx.Exec(ctx, restoreStatsSQL, identity); err != nil {
			return fmt.Errorf("restore stats for %s: %w", identity, err)
		}
		if !s.cfg.ResetProgressOnDeath {
			return nil
		}
		if _, err := tx.Exec(ctx, resetProgressSQL, identity); err != nil {
			return fmt.Errorf("reset progress for %s: %w", identity, err)
		}
		if _, err := tx.Exec(ctx, resetExperienceSQL, identity); err != nil {
			return fmt.Errorf("reset experience for %s: %w", identity, err)
		}
		return nil
	})
}
