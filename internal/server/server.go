package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/teris-io/shortid"
)

// ErrNotParticipant is returned when a sender is not a member of the
// conversation being written to. No partial write occurs.
var ErrNotParticipant = errors.New("not a participant of the conversation")

// ChatServer is the realtime core: it reconciles durable writes with room
// broadcasts so that every mutation is observable both via the Store and as
// an event to current subscribers, with the broadcast never preceding
// successful persistence.
type ChatServer struct {
	log            *log.Logger
	db             database.MessengerRepository
	stats          stats.StatsProvider
	registry       *RoomRegistry
	typingDebounce time.Duration
	// generateShortId is overridable in tests
	generateShortId func() (string, error)

	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	clientsWg   sync.WaitGroup
}

func NewChatServer(logger *log.Logger, db database.MessengerRepository, statsProvider stats.StatsProvider, typingDebounce time.Duration) (*ChatServer, error) {
	if typingDebounce <= 0 {
		return nil, fmt.Errorf("typing debounce must be positive, got %s", typingDebounce)
	}

	cs := &ChatServer{
		log:             logger,
		db:              db,
		stats:           statsProvider,
		registry:        NewRoomRegistry(statsProvider),
		typingDebounce:  typingDebounce,
		generateShortId: shortid.Generate,
		clients:         make(map[*Client]struct{}),
	}

	for _, metric := range []string{
		"NumActiveConnections",
		"NumActiveRooms",
		"NumMessagesSent",
		"NumEventsDropped",
	} {
		cs.stats.RegisterMetric(metric)
	}

	return cs, nil
}

func (cs *ChatServer) Registry() *RoomRegistry {
	return cs.registry
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.clientsWg.Add(1)
	cs.stats.Incr("NumActiveConnections")
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.registry.Disconnect(c)
	cs.clientsWg.Done()
	cs.stats.Decr("NumActiveConnections")
}

// Publish delivers the event to every current subscriber of the
// conversation, excluding ev.SkipClient when set. Delivery is at-most-once
// and best-effort: a subscriber with a full send queue misses the event and
// recovers by re-fetching durable state.
func (cs *ChatServer) Publish(conversationId string, ev *ServerEvent) {
	ev.Timestamp = Now()

	for _, c := range cs.registry.Subscribers(conversationId) {
		if c == ev.SkipClient {
			continue
		}

		if !c.queueEvent(ev) {
			cs.stats.Incr("NumEventsDropped")
		}
	}
}

// SendMessage validates the sender's membership, persists the message with
// its conversation side effects, and then broadcasts newMessage to the room.
func (cs *ChatServer) SendMessage(conversationId string, senderId int, body string) (types.Message, error) {
	conv, err := cs.db.GetConversationByExternalId(conversationId)
	if err != nil {
		return types.Message{}, err
	}

	if !isParticipant(conv, senderId) {
		return types.Message{}, ErrNotParticipant
	}

	sid, err := cs.generateShortId()
	if err != nil {
		return types.Message{}, fmt.Errorf("generate message id: %w", err)
	}

	dbMsg, err := cs.db.CreateMessage(database.CreateMessageParams{
		ConversationId: conv.Id,
		ExternalId:     sid,
		AccountId:      senderId,
		Body:           body,
		CreatedAt:      Now(),
	})
	if err != nil {
		return types.Message{}, err
	}

	cs.stats.Incr("NumMessagesSent")

	msg := MessageFromDB(dbMsg)
	cs.Publish(conv.ExternalId, &ServerEvent{NewMessage: &msg})

	return msg, nil
}

// EditMessage persists the body mutation and broadcasts the full updated
// record, not a diff.
func (cs *ChatServer) EditMessage(messageId, body string) (types.Message, error) {
	dbMsg, err := cs.db.UpdateMessageBody(messageId, body)
	if err != nil {
		return types.Message{}, err
	}

	msg := MessageFromDB(dbMsg)
	cs.Publish(msg.ConversationId, &ServerEvent{EditMessage: &msg})

	return msg, nil
}

// DeleteMessage removes the message and broadcasts its id. The conversation's
// lastMessage pointer is left untouched even when it referenced the deleted
// message.
func (cs *ChatServer) DeleteMessage(messageId string) error {
	dbMsg, err := cs.db.DeleteMessage(messageId)
	if err != nil {
		return err
	}

	cs.Publish(dbMsg.ConversationExternalId, &ServerEvent{
		DeleteMessage: &MessageDeleted{
			ConversationId: dbMsg.ConversationExternalId,
			MessageId:      dbMsg.ExternalId,
		},
	})

	return nil
}

// AddReaction appends the reaction to the message and broadcasts it to the
// room together with the message id.
func (cs *ChatServer) AddReaction(messageId string, accountId int, emoji string) (types.Message, error) {
	dbMsg, err := cs.db.AddReaction(messageId, accountId, emoji)
	if err != nil {
		return types.Message{}, err
	}

	msg := MessageFromDB(dbMsg)
	cs.Publish(msg.ConversationId, &ServerEvent{
		Reaction: &ReactionAdded{
			ConversationId: msg.ConversationId,
			MessageId:      msg.ExternalId,
			Reaction:       types.Reaction{Emoji: emoji, UserId: accountId},
		},
	})

	return msg, nil
}

// MarkRead resets the user's unread counter for the conversation to zero.
func (cs *ChatServer) MarkRead(conversationId string, accountId int) error {
	conv, err := cs.db.GetConversationByExternalId(conversationId)
	if err != nil {
		return err
	}

	return cs.db.ResetUnreadCount(conv.Id, accountId)
}

// CreateConversation creates a conversation with a fixed participant set and
// a zeroed unread counter per participant.
func (cs *ChatServer) CreateConversation(participantIds []int) (types.Conversation, error) {
	sid, err := cs.generateShortId()
	if err != nil {
		return types.Conversation{}, fmt.Errorf("generate conversation id: %w", err)
	}

	dbConv, err := cs.db.CreateConversation(database.CreateConversationParams{
		ExternalId:     sid,
		ParticipantIds: participantIds,
	})
	if err != nil {
		return types.Conversation{}, err
	}

	return ConversationFromDB(dbConv), nil
}

// Shutdown disconnects all clients and waits for their pumps to clean up.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("shutting down chat server")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	done := make(chan struct{})
	go func() {
		cs.clientsWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isParticipant(conv database.Conversation, accountId int) bool {
	for _, m := range conv.Members {
		if m.AccountId == accountId {
			return true
		}
	}

	return false
}

func MessageFromDB(m database.Message) types.Message {
	readBy := make([]int, len(m.ReadBy))
	for i, id := range m.ReadBy {
		readBy[i] = int(id)
	}

	reactions := make([]types.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = types.Reaction{Emoji: r.Emoji, UserId: r.AccountId}
	}

	return types.Message{
		Id:             m.Id,
		ExternalId:     m.ExternalId,
		ConversationId: m.ConversationExternalId,
		SenderId:       m.AccountId,
		SeqId:          m.SeqId,
		Body:           m.Body,
		ReadBy:         readBy,
		Reactions:      reactions,
		Timestamp:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ConversationFromDB(c database.Conversation) types.Conversation {
	participants := make([]types.User, len(c.Members))
	unreadCounts := make(map[int]int, len(c.Members))
	for i, m := range c.Members {
		participants[i] = types.User{Id: m.AccountId, Username: m.Username}
		unreadCounts[m.AccountId] = m.UnreadCount
	}

	conv := types.Conversation{
		Id:           c.Id,
		ExternalId:   c.ExternalId,
		Participants: participants,
		UnreadCounts: unreadCounts,
		SeqId:        c.SeqId,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}

	if c.LastMessage != nil {
		msg := MessageFromDB(*c.LastMessage)
		conv.LastMessage = &msg
	}
	if c.LastMessageAt.Valid {
		t := c.LastMessageAt.Time
		conv.LastMessageAt = &t
	}

	return conv
}
