package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Conversation is the wire representation of a conversation. UnreadCounts
// holds exactly one entry per participant, keyed by account id.
type Conversation struct {
	Id            int         `json:"id"`
	ExternalId    string      `json:"external_id"`
	Participants  []User      `json:"participants"`
	UnreadCounts  map[int]int `json:"unread_counts"`
	SeqId         int         `json:"seq_id"`
	LastMessage   *Message    `json:"last_message,omitempty"`
	LastMessageAt *time.Time  `json:"last_message_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at,omitempty"`
}

// Message carries the conversation's external id so realtime events can be
// routed without an extra lookup. SeqId is server-assigned and monotonic
// within a conversation.
type Message struct {
	Id             int        `json:"id"`
	ExternalId     string     `json:"external_id"`
	ConversationId string     `json:"conversation_id"`
	SenderId       int        `json:"sender_id"`
	SeqId          int        `json:"seq_id"`
	Body           string     `json:"body"`
	ReadBy         []int      `json:"read_by"`
	Reactions      []Reaction `json:"reactions"`
	Timestamp      time.Time  `json:"timestamp"`
	UpdatedAt      time.Time  `json:"updated_at,omitempty"`
}

type Reaction struct {
	Emoji  string `json:"emoji"`
	UserId int    `json:"user_id"`
}
