package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"scenerelay/model"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// HandleHealth answers liveness probes.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// HandleMetrics outputs relay counters and current sizes.
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.Stats())
}

type sceneInfo struct {
	Players      []string `json:"players"`
	Connections  int      `json:"connections"`
	SinglePlayer bool     `json:"singlePlayer"`
}

// HandleScenes lists who is in which scene and how many connections have
// joined each room.
// GET /admin/scenes
func (s *Server) HandleScenes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]sceneInfo)
	for scene, ids := range s.relay.players.Scenes() {
		out[scene] = sceneInfo{
			Players:      ids,
			Connections:  len(s.relay.rooms.Members(scene)),
			SinglePlayer: s.relay.rooms.Excluded(scene),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": out})
}

// HandleIssueGuest hands out a fresh guest identity.
// POST /api/guest
func (s *Server) HandleIssueGuest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{
		"userId": s.relay.GuestPrefix() + uuid.NewString(),
	})
}

// HandleGetInventory returns a guest's in-memory inventory.
// GET /playerData/inventory/{userId}
func (s *Server) HandleGetInventory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	inv, err := s.relay.GuestInventory(userID)
	if err != nil {
		s.writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": inv})
}

// HandlePostInventory writes one slot of a guest's in-memory inventory.
// POST /playerData/inventory/{userId}
func (s *Server) HandlePostInventory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var upd model.SlotUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid json"})
		return
	}
	if err := s.relay.UpdateGuestInventory(userID, upd); err != nil {
		s.writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) writeInventoryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotGuest), errors.Is(err, ErrPlayerNotActive):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidSlot):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"success": false, "message": err.Error()})
}
