package server

import (
	"encoding/json"

	"scenerelay/model"
)

// Server to client events.
const (
	EventInitializeComplete    = "initializeComplete"
	EventRespawn               = "respawn"
	EventCurrentPlayers        = "currentPlayers"
	EventNewPlayer             = "newPlayer"
	EventUpdatePlayerMovement  = "updatePlayerMovement"
	EventUpdatePlayerAnimation = "updatePlayerAnimation"
	EventUpdateAttack          = "updateAttack"
	EventPlayerDisconnected    = "playerDisconnected"
	EventChatSystem            = "chat:system"
	EventPresenceList          = "presence:list"
)

type currentPlayers struct {
	Players []model.Record `json:"players"`
}

type presenceEntry struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

type chatMessage struct {
	UserID  string `json:"userId"`
	User    string `json:"user"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

type directMessage struct {
	FromUserID string `json:"fromUserId"`
	From       string `json:"from"`
	ToUserID   string `json:"toUserId"`
	Message    string `json:"message"`
	TS         int64  `json:"ts"`
}

// encode builds an outbound frame. data == nil produces a frame without a
// data field, which is what respawn looks like on the wire.
func encode(event string, data any) []byte {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			// only reachable with unsupported values such as NaN positions
			raw = []byte("null")
		}
		env.Data = raw
	}
	b, _ := json.Marshal(env)
	return b
}

// withID stamps the sender identity onto a client payload. Non-object
// payloads are replaced by {"id": ...}; a client supplied id never wins.
func withID(identity string, payload json.RawMessage) json.RawMessage {
	fields := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	id, _ := json.Marshal(identity)
	fields["id"] = id
	out, _ := json.Marshal(fields)
	return out
}
