package server

import (
	"bytes"
	"encoding/json"

	"scenerelay/model"
)

// Client to server events.
const (
	EventLogin              = "login"
	EventChatMessage        = "chat:msg"
	EventChatDirect         = "chat:dm"
	EventInitialize         = "initialize"
	EventRequestSceneChange = "requestSceneChange"
	EventLoadSceneComplete  = "LoadSceneComplete"
	EventPlayerMovement     = "playerMovement"
	EventPlayerAnimation    = "playerAnimation"
	EventPlayerAttack       = "playerAttack"
	EventPlayerDied         = "playerDied"
)

// Envelope is the JSON text frame exchanged over the websocket in both
// directions, e.g. {"event":"playerMovement","data":{...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InitRequest is the initialize payload. The legacy client sends the bare
// identity as a JSON string instead of an object.
type InitRequest struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	IsGuest  bool   `json:"isGuest"`
}

func (r *InitRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		*r = InitRequest{}
		return json.Unmarshal(b, &r.UserID)
	}
	type plain InitRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = InitRequest(p)
	return nil
}

// SceneChangeRequest asks to move the sender to another scene. Both fields
// are required.
type SceneChangeRequest struct {
	Scene string      `json:"scene"`
	Pos   *model.Vec3 `json:"pos"`
}

// MovementUpdate carries the sender's latest transform. Both fields are
// required; anything else the client adds is relayed untouched.
type MovementUpdate struct {
	Position *model.Vec3 `json:"position"`
	Rotation *model.Vec3 `json:"rotation"`
}

type LoginRequest struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type DirectRequest struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
}
