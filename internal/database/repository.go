package database

// MessengerRepository is the durable Store for users, conversations and
// messages. It owns the unread counters: increments happen atomically with
// message persistence, resets via ResetUnreadCount. Missing rows surface as
// sql.ErrNoRows.
type MessengerRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	ListAccounts() ([]User, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	GetConversationByExternalId(externalId string) (Conversation, error)
	ListConversationsForAccount(accountId int) ([]Conversation, error)
	ResetUnreadCount(conversationId, accountId int) error
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageByExternalId(externalId string) (Message, error)
	GetMessages(conversationId, since, before, limit int) ([]Message, error)
	UpdateMessageBody(externalId, body string) (Message, error)
	DeleteMessage(externalId string) (Message, error)
	AddReaction(messageExternalId string, accountId int, emoji string) (Message, error)
}
