package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
)

type BaseEvent struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientEvent is the closed set of events a connection may send. Exactly one
// variant field is set per event.
type ClientEvent struct {
	BaseEvent
	Join       *JoinConversation  `json:"joinConversation,omitempty"`
	Leave      *LeaveConversation `json:"leaveConversation,omitempty"`
	Typing     *TypingEvent       `json:"typing,omitempty"`
	StopTyping *TypingEvent       `json:"stopTyping,omitempty"`
	Reaction   *ReactionEvent     `json:"reaction,omitempty"`
	UserId     int                `json:"-"`
	client     *Client
}

type JoinConversation struct {
	ConversationId string `json:"conversation_id"`
}

type LeaveConversation struct {
	ConversationId string `json:"conversation_id"`
}

type TypingEvent struct {
	ConversationId string `json:"conversation_id"`
}

type ReactionEvent struct {
	MessageId string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// ServerEvent is the envelope delivered to room subscribers. SkipClient, when
// set, excludes the originating connection from delivery; only the typing
// indicator events use it.
type ServerEvent struct {
	BaseEvent
	Response      *Response        `json:"response,omitempty"`
	NewMessage    *types.Message   `json:"newMessage,omitempty"`
	EditMessage   *types.Message   `json:"editMessage,omitempty"`
	DeleteMessage *MessageDeleted  `json:"deleteMessage,omitempty"`
	Typing        *TypingIndicator `json:"typing,omitempty"`
	StopTyping    *TypingIndicator `json:"stopTyping,omitempty"`
	Reaction      *ReactionAdded   `json:"reaction,omitempty"`
	SkipClient    *Client          `json:"-"`
}

type MessageDeleted struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
}

type TypingIndicator struct {
	ConversationId string `json:"conversation_id"`
	UserId         int    `json:"user_id"`
}

type ReactionAdded struct {
	ConversationId string         `json:"conversation_id"`
	MessageId      string         `json:"message_id"`
	Reaction       types.Reaction `json:"reaction"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NoErrOK(id int, data any) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrNotFound(id int) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "not found",
		},
	}
}

func ErrForbidden(id int) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not a participant",
		},
	}
}

func ErrInternalError(id int) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrInvalidEvent(id int) *ServerEvent {
	ev := &ServerEvent{
		BaseEvent: BaseEvent{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid event format",
		},
	}

	if id > 0 {
		ev.Id = id
	}
	return ev
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
