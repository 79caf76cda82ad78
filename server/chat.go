package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Chat tracks which users are online for the website chat and relays
// public and direct messages. A user stays online while any of its
// connections is open.
type Chat struct {
	mu    sync.Mutex
	users map[string]*chatUser

	registry *Registry
	now      func() time.Time
	log      *zap.SugaredLogger
}

type chatUser struct {
	nickname string
	conns    map[ConnID]struct{}
}

func NewChat(registry *Registry, now func() time.Time, log *zap.SugaredLogger) *Chat {
	return &Chat{
		users:    make(map[string]*chatUser),
		registry: registry,
		now:      now,
		log:      log,
	}
}

// Login marks userID online through p and announces it to everyone. The
// caller binds p to userID first.
func (c *Chat) Login(p Peer, userID, nickname string) {
	c.mu.Lock()
	u, ok := c.users[userID]
	if !ok {
		u = &chatUser{nickname: nickname, conns: make(map[ConnID]struct{})}
		c.users[userID] = u
	}
	u.conns[p.ID()] = struct{}{}
	presence := c.presenceLocked()
	c.mu.Unlock()

	c.log.Infow("chat login", "user", userID, "nickname", nickname)
	c.broadcast(encode(EventChatSystem, fmt.Sprintf("%s joined.", nickname)))
	c.broadcast(encode(EventPresenceList, presence))
}

// Message broadcasts a public message from the user bound to p.
func (c *Chat) Message(p Peer, message string) {
	userID, nickname, ok := c.sender(p)
	if !ok {
		return
	}
	c.broadcast(encode(EventChatMessage, chatMessage{
		UserID:  userID,
		User:    nickname,
		Message: message,
		TS:      c.now().UnixMilli(),
	}))
}

// Direct delivers a message to every connection of toUserID and echoes it
// back to the sender. Both users must be online.
func (c *Chat) Direct(p Peer, toUserID, message string) {
	if toUserID == "" || message == "" {
		return
	}
	fromUserID, from, ok := c.sender(p)
	if !ok {
		return
	}
	c.mu.Lock()
	_, online := c.users[toUserID]
	c.mu.Unlock()
	if !online {
		return
	}

	msg := encode(EventChatDirect, directMessage{
		FromUserID: fromUserID,
		From:       from,
		ToUserID:   toUserID,
		Message:    message,
		TS:         c.now().UnixMilli(),
	})
	for _, target := range c.registry.ConnectionsFor(toUserID) {
		target.Enqueue(msg)
	}
	p.Enqueue(msg)
}

// Disconnect removes one connection of userID; the last one takes the user
// offline and announces it.
func (c *Chat) Disconnect(id ConnID, userID string) {
	c.mu.Lock()
	u, ok := c.users[userID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(u.conns, id)
	if len(u.conns) > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.users, userID)
	presence := c.presenceLocked()
	c.mu.Unlock()

	c.log.Infow("chat logout", "user", userID, "nickname", u.nickname)
	c.broadcast(encode(EventChatSystem, fmt.Sprintf("%s left.", u.nickname)))
	c.broadcast(encode(EventPresenceList, presence))
}

// Len is the number of online users.
func (c *Chat) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}

func (c *Chat) sender(p Peer) (userID, nickname string, ok bool) {
	userID, ok = c.registry.Resolve(p.ID())
	if !ok {
		return "", "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[userID]
	if !ok {
		return "", "", false
	}
	return userID, u.nickname, true
}

func (c *Chat) presenceLocked() []presenceEntry {
	out := make([]presenceEntry, 0, len(c.users))
	for id, u := range c.users {
		out = append(out, presenceEntry{UserID: id, Nickname: u.nickname})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (c *Chat) broadcast(msg []byte) {
	for _, p := range c.registry.Peers() {
		p.Enqueue(msg)
	}
}
