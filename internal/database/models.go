package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	Id         int
	ExternalId string
	SeqId      int
	// LastMessageId is a bare reference with no foreign key: deleting the
	// referenced message leaves it dangling.
	LastMessageId sql.NullInt64
	LastMessageAt sql.NullTime
	// LastMessage is resolved on read; nil when unset or dangling.
	LastMessage *Message
	Members     []Member
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member is one participant's row in a conversation, including the unread
// counter owned by the Store.
type Member struct {
	AccountId   int
	Username    string
	UnreadCount int
}

type Message struct {
	Id         int
	ExternalId string
	// ConversationExternalId is resolved on read for event routing.
	ConversationExternalId string
	ConversationId         int
	AccountId              int
	SeqId                  int
	Body                   string
	ReadBy                 []int64
	Reactions              []Reaction
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Reaction struct {
	Id        int
	MessageId int
	AccountId int
	Emoji     string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
}

type CreateConversationParams struct {
	ExternalId     string
	ParticipantIds []int
}

type CreateMessageParams struct {
	ConversationId int
	ExternalId     string
	AccountId      int
	Body           string
	CreatedAt      time.Time
}
