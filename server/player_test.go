package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenerelay/model"
)

func TestPlayerStore_CreateOrReattach(t *testing.T) {
	s := NewPlayerStore()
	calls := 0
	load := func() model.Record {
		calls++
		return model.DefaultRecord("ignored", "Alice", model.Persisted("user_7"))
	}

	rec, reattached := s.CreateOrReattach("user_7", load)
	assert.False(t, reattached)
	assert.Equal(t, "user_7", rec.ID, "the store owns the id")

	s.Update("user_7", func(r *model.Record) { r.CurrentSceneName = "Town" })

	again, reattached := s.CreateOrReattach("user_7", load)
	assert.True(t, reattached)
	assert.Equal(t, "Town", again.CurrentSceneName)
	assert.Equal(t, 1, calls)
}

func TestPlayerStore_ConcurrentCreateKeepsOneRecord(t *testing.T) {
	s := NewPlayerStore()
	var fresh int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reattached := s.CreateOrReattach("guest_1", func() model.Record {
				return model.DefaultRecord("guest_1", "G", model.Guest())
			})
			if !reattached {
				atomic.AddInt32(&fresh, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh)
	assert.Equal(t, 1, s.Len())
}

func TestPlayerStore_GetReturnsCopy(t *testing.T) {
	s := NewPlayerStore()
	s.CreateOrReattach("guest_1", func() model.Record {
		rec := model.DefaultRecord("guest_1", "G", model.Guest())
		rec.Inventory = model.StarterInventory()
		return rec
	})

	rec, ok := s.Get("guest_1")
	require.True(t, ok)
	rec.Inventory[0].ItemCount = 999
	rec.CurrentSceneName = "Elsewhere"

	stored, _ := s.Get("guest_1")
	assert.NotEqual(t, 999, stored.Inventory[0].ItemCount)
	assert.Equal(t, "Main", stored.CurrentSceneName)
}

func TestPlayerStore_UpdateAndRemoveUnknown(t *testing.T) {
	s := NewPlayerStore()
	assert.False(t, s.Update("nobody", func(*model.Record) { t.Fatal("mutator must not run") }))
	_, ok := s.Remove("nobody")
	assert.False(t, ok)
}

func TestPlayerStore_InSceneAndScenes(t *testing.T) {
	s := NewPlayerStore()
	for _, id := range []string{"c", "a", "b"} {
		s.CreateOrReattach(id, func() model.Record { return model.DefaultRecord(id, id, model.Guest()) })
	}
	s.Update("c", func(r *model.Record) { r.CurrentSceneName = "Town" })

	others := s.InScene("Main", "a")
	require.Len(t, others, 1)
	assert.Equal(t, "b", others[0].ID)

	assert.Equal(t, map[string][]string{
		"Main": {"a", "b"},
		"Town": {"c"},
	}, s.Scenes())

	rec, ok := s.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, 2, s.Len())
}
