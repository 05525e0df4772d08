package server

import (
	"sync"

	"github.com/npezzotti/go-messenger/internal/stats"
)

// RoomRegistry maps a conversation id to the set of connections currently
// subscribed to its realtime events. It carries no durability: the mapping
// is rebuilt as clients reconnect and rejoin after a restart.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	stats stats.StatsProvider
}

func NewRoomRegistry(statsProvider stats.StatsProvider) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[*Client]struct{}),
		stats: statsProvider,
	}
}

// Join subscribes the connection to the conversation. Joining twice is a
// no-op.
func (rr *RoomRegistry) Join(c *Client, conversationId string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room, ok := rr.rooms[conversationId]
	if !ok {
		room = make(map[*Client]struct{})
		rr.rooms[conversationId] = room
		rr.stats.Incr("NumActiveRooms")
	}

	room[c] = struct{}{}
}

// Leave removes the connection from the conversation's subscriber set.
// Leaving a room the connection is not in is a no-op.
func (rr *RoomRegistry) Leave(c *Client, conversationId string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.leaveLocked(c, conversationId)
}

func (rr *RoomRegistry) leaveLocked(c *Client, conversationId string) {
	room, ok := rr.rooms[conversationId]
	if !ok {
		return
	}

	if _, ok := room[c]; !ok {
		return
	}

	delete(room, c)
	if len(room) == 0 {
		delete(rr.rooms, conversationId)
		rr.stats.Decr("NumActiveRooms")
	}
}

// Disconnect removes the connection from every conversation it belongs to.
func (rr *RoomRegistry) Disconnect(c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for id := range rr.rooms {
		rr.leaveLocked(c, id)
	}
}

// Subscribers returns a snapshot of the conversation's current subscriber
// set. Callers iterate the copy; concurrent join/leave never corrupts it.
func (rr *RoomRegistry) Subscribers(conversationId string) []*Client {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	room := rr.rooms[conversationId]
	subscribers := make([]*Client, 0, len(room))
	for c := range room {
		subscribers = append(subscribers, c)
	}

	return subscribers
}

func (rr *RoomRegistry) Contains(c *Client, conversationId string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	_, ok := rr.rooms[conversationId][c]
	return ok
}
