package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenerelay/model"
	"scenerelay/storage"
)

func TestLoadPlayerNotFound(t *testing.T) {
	s := New(true)
	_, err := s.LoadPlayer(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrPlayerNotFound)
}

func TestLoadPlayerCopiesPosition(t *testing.T) {
	s := New(true)
	s.Put("u1", Character{Nickname: "Alice", Position: &model.Vec3{X: 1, Y: 2, Z: 3}, RotationY: 90, Scene: "Town"})

	saved, err := s.LoadPlayer(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", saved.DisplayName)
	assert.Equal(t, "Town", saved.SceneName)
	assert.Equal(t, 90.0, saved.RotationY)
	require.NotNil(t, saved.Position)

	saved.Position.X = 100
	c, _ := s.Character("u1")
	assert.Equal(t, 1.0, c.Position.X)
}

func TestSavePlayerScene(t *testing.T) {
	ctx := context.Background()
	s := New(true)
	s.Put("u1", Character{Nickname: "Alice", Scene: "Main"})
	require.NoError(t, s.SavePlayerScene(ctx, "u1", "Dungeon", model.Vec3{X: 4, Y: 5, Z: 6}))

	c, ok := s.Character("u1")
	require.True(t, ok)
	assert.Equal(t, "Dungeon", c.Scene)
	assert.Equal(t, model.Vec3{X: 4, Y: 5, Z: 6}, *c.Position)
}

func TestResetPlayerOnDeath(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name          string
		resetProgress bool
		wantLevel     int
		wantGold      int
		wantExp       int
	}{
		{name: "progress reset", resetProgress: true, wantLevel: 1, wantGold: 0, wantExp: 0},
		{name: "progress kept", resetProgress: false, wantLevel: 7, wantGold: 300, wantExp: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.resetProgress)
			s.Put("u1", Character{
				Nickname: "Alice",
				Position: &model.Vec3{X: 9, Y: 9, Z: 9},
				Scene:    "Dungeon",
				Level:    7, Gold: 300, HP: 3, MaxHP: 80, Exp: 42,
			})

			require.NoError(t, s.ResetPlayerOnDeath(ctx, "u1"))
			c, _ := s.Character("u1")
			assert.Equal(t, model.DefaultScene, c.Scene)
			assert.Equal(t, model.DefaultPosition, *c.Position)
			assert.Equal(t, 80, c.HP)
			assert.Equal(t, tt.wantLevel, c.Level)
			assert.Equal(t, tt.wantGold, c.Gold)
			assert.Equal(t, tt.wantExp, c.Exp)
		})
	}
}

func TestWritesCreateUnknownCharacter(t *testing.T) {
	ctx := context.Background()
	s := New(true)

	require.NoError(t, s.SavePlayerScene(ctx, "u1", "Town", model.Vec3{X: 1, Y: 2, Z: 3}))
	c, ok := s.Character("u1")
	require.True(t, ok)
	assert.Equal(t, model.StarterLevel, c.Level)
	assert.Equal(t, model.StarterGold, c.Gold)
	assert.Equal(t, model.StarterMaxHP, c.MaxHP)

	saved, err := s.LoadPlayer(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Town", saved.SceneName)
	assert.Equal(t, model.Vec3{X: 1, Y: 2, Z: 3}, *saved.Position)

	require.NoError(t, s.ResetPlayerOnDeath(ctx, "u2"))
	c, ok = s.Character("u2")
	require.True(t, ok)
	assert.Equal(t, model.DefaultScene, c.Scene)
	assert.Equal(t, model.StarterMaxHP, c.HP)
}
