package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var chatClock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newChatRelay(t *testing.T) *Relay {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return chatClock }
	return NewRelay(newFakeGateway(), opts, zaptest.NewLogger(t).Sugar())
}

func login(r *Relay, userID, nickname string) *recorder {
	p := newRecorder()
	r.Connect(p)
	send(r, p, EventLogin, map[string]any{"userId": userID, "nickname": nickname})
	return p
}

func TestChat_LoginAnnouncesPresence(t *testing.T) {
	r := newChatRelay(t)
	alice := login(r, "u1", "Alice")
	bob := login(r, "u2", "Bob")

	sys := alice.events(EventChatSystem)
	require.Len(t, sys, 2)
	assert.JSONEq(t, `"Bob joined."`, string(sys[1].Data))

	presence := bob.events(EventPresenceList)
	require.Len(t, presence, 1)
	assert.JSONEq(t, `[{"userId":"u1","nickname":"Alice"},{"userId":"u2","nickname":"Bob"}]`, string(presence[0].Data))
}

func TestChat_Message(t *testing.T) {
	r := newChatRelay(t)
	alice := login(r, "u1", "Alice")
	bob := login(r, "u2", "Bob")
	resetAll(alice, bob)

	send(r, alice, EventChatMessage, map[string]any{"message": "hi all"})

	for _, p := range []*recorder{alice, bob} {
		got := p.events(EventChatMessage)
		require.Len(t, got, 1)
		var msg chatMessage
		require.NoError(t, json.Unmarshal(got[0].Data, &msg))
		assert.Equal(t, chatMessage{UserID: "u1", User: "Alice", Message: "hi all", TS: chatClock.UnixMilli()}, msg)
	}
}

func TestChat_MessageRequiresLogin(t *testing.T) {
	r := newChatRelay(t)
	bob := login(r, "u2", "Bob")
	bob.reset()
	stranger := newRecorder()
	r.Connect(stranger)

	send(r, stranger, EventChatMessage, map[string]any{"message": "hello?"})

	assert.Zero(t, bob.count())
}

func TestChat_DirectMessage(t *testing.T) {
	r := newChatRelay(t)
	alice := login(r, "u1", "Alice")
	bobPhone := login(r, "u2", "Bob")
	bobLaptop := login(r, "u2", "Bob")
	carol := login(r, "u3", "Carol")
	resetAll(alice, bobPhone, bobLaptop, carol)

	send(r, alice, EventChatDirect, map[string]any{"toUserId": "u2", "message": "psst"})

	assert.Len(t, bobPhone.events(EventChatDirect), 1)
	assert.Len(t, bobLaptop.events(EventChatDirect), 1)
	echo := alice.events(EventChatDirect)
	require.Len(t, echo, 1)
	assert.JSONEq(t, `{"fromUserId":"u1","from":"Alice","toUserId":"u2","message":"psst","ts":`+
		jsonInt(chatClock.UnixMilli())+`}`, string(echo[0].Data))
	assert.Zero(t, carol.count())

	alice.reset()
	send(r, alice, EventChatDirect, map[string]any{"toUserId": "u404", "message": "anyone?"})
	assert.Zero(t, alice.count())
}

func TestChat_LastConnectionLeaves(t *testing.T) {
	r := newChatRelay(t)
	alice := login(r, "u1", "Alice")
	bob1 := login(r, "u2", "Bob")
	bob2 := login(r, "u2", "Bob")
	resetAll(alice, bob1, bob2)

	r.Disconnect(bob1)
	assert.Zero(t, alice.count(), "Bob still has a connection")
	assert.Equal(t, 2, r.chat.Len())

	r.Disconnect(bob2)
	sys := alice.events(EventChatSystem)
	require.Len(t, sys, 1)
	assert.JSONEq(t, `"Bob left."`, string(sys[0].Data))
	presence := alice.events(EventPresenceList)
	require.Len(t, presence, 1)
	assert.JSONEq(t, `[{"userId":"u1","nickname":"Alice"}]`, string(presence[0].Data))
}

func TestChat_LoginAsSomeoneElseMovesPresence(t *testing.T) {
	r := newChatRelay(t)
	alice := login(r, "u1", "Alice")
	shared := login(r, "u2", "Bob")
	resetAll(alice, shared)

	send(r, shared, EventLogin, map[string]any{"userId": "u3", "nickname": "Carol"})

	sys := alice.events(EventChatSystem)
	require.Len(t, sys, 2)
	assert.JSONEq(t, `"Bob left."`, string(sys[0].Data))
	assert.JSONEq(t, `"Carol joined."`, string(sys[1].Data))
	presence := alice.events(EventPresenceList)
	require.Len(t, presence, 2)
	assert.JSONEq(t, `[{"userId":"u1","nickname":"Alice"},{"userId":"u3","nickname":"Carol"}]`, string(presence[1].Data))
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
