package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is the per-connection session manager. It drives the
// join/leave state machine, owns the connection's typing debounce timers,
// and pumps events between the websocket and the chat server.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerEvent
	stop       chan struct{}
	stopOnce   sync.Once
	typing     *typingTimers

	mu sync.Mutex
	// active is the external id of the joined conversation, empty when the
	// session is not in a room.
	active string
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
		typing:     newTypingTimers(cs.typingDebounce),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(ErrInvalidEvent(-1))
			continue
		}

		ev.client = c
		ev.UserId = c.user.Id
		ev.Timestamp = Now()

		c.handleEvent(&ev)
	}
}

// handleEvent dispatches a client event by its variant.
func (c *Client) handleEvent(ev *ClientEvent) {
	switch {
	case ev.Join != nil:
		c.handleJoin(ev)
	case ev.Leave != nil:
		c.handleLeave(ev)
	case ev.Typing != nil:
		c.handleTyping(ev)
	case ev.StopTyping != nil:
		c.handleStopTyping(ev)
	case ev.Reaction != nil:
		c.handleReaction(ev)
	default:
		c.queueEvent(ErrInvalidEvent(ev.Id))
	}
}

// handleJoin moves the session into the requested conversation, implicitly
// leaving any previously joined one, and reconciles the user's unread
// counter against the Store.
func (c *Client) handleJoin(ev *ClientEvent) {
	conv, err := c.chatServer.db.GetConversationByExternalId(ev.Join.ConversationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueEvent(ErrNotFound(ev.Id))
		} else {
			c.log.Println("GetConversationByExternalId:", err)
			c.queueEvent(ErrInternalError(ev.Id))
		}
		return
	}

	if !isParticipant(conv, c.user.Id) {
		c.queueEvent(ErrForbidden(ev.Id))
		return
	}

	c.mu.Lock()
	prev := c.active
	c.active = conv.ExternalId
	c.mu.Unlock()

	if prev != "" && prev != conv.ExternalId {
		c.chatServer.registry.Leave(c, prev)
		c.typing.Cancel(prev)
	}

	c.chatServer.registry.Join(c, conv.ExternalId)

	if err := c.chatServer.db.ResetUnreadCount(conv.Id, c.user.Id); err != nil {
		c.log.Println("ResetUnreadCount:", err)
		c.queueEvent(ErrInternalError(ev.Id))
		return
	}

	c.queueEvent(NoErrOK(ev.Id, ConversationFromDB(conv)))
}

func (c *Client) handleLeave(ev *ClientEvent) {
	id := ev.Leave.ConversationId

	c.mu.Lock()
	if c.active == id {
		c.active = ""
	}
	c.mu.Unlock()

	c.chatServer.registry.Leave(c, id)
	c.typing.Cancel(id)

	c.queueEvent(NoErrOK(ev.Id, nil))
}

// handleTyping publishes the typing indicator to the room, excluding this
// connection, and (re-)arms the stop-typing debounce timer.
func (c *Client) handleTyping(ev *ClientEvent) {
	id := ev.Typing.ConversationId
	if c.activeConversation() != id {
		c.queueEvent(ErrForbidden(ev.Id))
		return
	}

	c.chatServer.Publish(id, &ServerEvent{
		Typing:     &TypingIndicator{ConversationId: id, UserId: c.user.Id},
		SkipClient: c,
	})

	c.typing.Touch(id, func() {
		c.chatServer.Publish(id, &ServerEvent{
			StopTyping: &TypingIndicator{ConversationId: id, UserId: c.user.Id},
			SkipClient: c,
		})
	})
}

// handleStopTyping cancels the pending debounce timer and publishes
// stopTyping immediately.
func (c *Client) handleStopTyping(ev *ClientEvent) {
	id := ev.StopTyping.ConversationId
	if c.activeConversation() != id {
		c.queueEvent(ErrForbidden(ev.Id))
		return
	}

	c.typing.Cancel(id)
	c.chatServer.Publish(id, &ServerEvent{
		StopTyping: &TypingIndicator{ConversationId: id, UserId: c.user.Id},
		SkipClient: c,
	})
}

func (c *Client) handleReaction(ev *ClientEvent) {
	if ev.Reaction.MessageId == "" || ev.Reaction.Emoji == "" {
		c.queueEvent(ErrInvalidEvent(ev.Id))
		return
	}

	if _, err := c.chatServer.AddReaction(ev.Reaction.MessageId, c.user.Id, ev.Reaction.Emoji); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueEvent(ErrNotFound(ev.Id))
		} else {
			c.log.Println("AddReaction:", err)
			c.queueEvent(ErrInternalError(ev.Id))
		}
		return
	}

	c.queueEvent(NoErrAccepted(ev.Id))
}

func (c *Client) activeConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// queueEvent enqueues an event for the write pump without blocking. It
// reports false when the send queue is full; delivery is best-effort and
// the event is simply dropped.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("failed to queue event, channel is full")
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup tears the session down on transport disconnect: removes the
// connection from every room and cancels any pending typing timers.
func (c *Client) cleanup() {
	c.typing.CancelAll()
	c.chatServer.removeClient(c)
	c.stopClient()
}
