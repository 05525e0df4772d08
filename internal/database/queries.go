package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	createMemberQuery = "INSERT INTO conversation_members (conversation_id, account_id, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4)"
	messageColumns = "m.id, m.external_id, c.external_id, m.conversation_id, m.account_id, m.seq_id, m.body, m.read_by, m.created_at, m.updated_at"
)

func (db *PgMessengerRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMessengerRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgMessengerRepository) ListAccounts() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email, created_at, updated_at FROM accounts ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgMessengerRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO conversations (external_id, created_at, updated_at) "+
			"VALUES ($1, $2, $2) RETURNING id, external_id, seq_id, created_at, updated_at",
		params.ExternalId,
		time.Now().UTC(),
	)

	var conv Conversation
	err = res.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.SeqId,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}

	for _, accountId := range params.ParticipantIds {
		_, err = tx.Exec(
			createMemberQuery,
			conv.Id,
			accountId,
			time.Now().UTC(),
			time.Now().UTC(),
		)
		if err != nil {
			return Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Conversation{}, err
	}

	conv.Members, err = db.getMembers(conv.Id)
	return conv, err
}

func (db *PgMessengerRepository) getMembers(conversationId int) ([]Member, error) {
	rows, err := db.conn.Query(
		"SELECT cm.account_id, a.username, cm.unread_count FROM conversation_members cm "+
			"JOIN accounts a ON cm.account_id = a.id WHERE cm.conversation_id = $1 ORDER BY cm.id",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]Member, 0)
	for rows.Next() {
		var m Member
		if err = rows.Scan(&m.AccountId, &m.Username, &m.UnreadCount); err != nil {
			return nil, err
		}

		members = append(members, m)
	}

	return members, rows.Err()
}

func (db *PgMessengerRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, seq_id, last_message_id, last_message_at, created_at, updated_at "+
			"FROM conversations WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ExternalId,
		&conv.SeqId,
		&conv.LastMessageId,
		&conv.LastMessageAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}

	if conv.Members, err = db.getMembers(conv.Id); err != nil {
		return Conversation{}, err
	}

	if err = db.resolveLastMessage(&conv); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

// resolveLastMessage loads the conversation's last message record. A
// last_message_id referencing a deleted message resolves to nil without
// error; the pointer itself is preserved.
func (db *PgMessengerRepository) resolveLastMessage(conv *Conversation) error {
	if !conv.LastMessageId.Valid {
		return nil
	}

	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN conversations c ON m.conversation_id = c.id WHERE m.id = $1 LIMIT 1",
		conv.LastMessageId.Int64,
	)

	msg, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	conv.LastMessage = &msg
	return nil
}

func (db *PgMessengerRepository) ListConversationsForAccount(accountId int) ([]Conversation, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.seq_id, c.last_message_id, c.last_message_at, c.created_at, c.updated_at "+
			"FROM conversations c JOIN conversation_members cm ON c.id = cm.conversation_id "+
			"WHERE cm.account_id = $1 ORDER BY c.last_message_at DESC NULLS LAST, c.id",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations = make([]Conversation, 0)
	for rows.Next() {
		var conv Conversation
		err = rows.Scan(
			&conv.Id,
			&conv.ExternalId,
			&conv.SeqId,
			&conv.LastMessageId,
			&conv.LastMessageAt,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range conversations {
		if conversations[i].Members, err = db.getMembers(conversations[i].Id); err != nil {
			return nil, err
		}
		if err = db.resolveLastMessage(&conversations[i]); err != nil {
			return nil, err
		}
	}

	return conversations, nil
}

func (db *PgMessengerRepository) ResetUnreadCount(conversationId, accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE conversation_members SET unread_count = 0, updated_at = $3 "+
			"WHERE conversation_id = $1 AND account_id = $2",
		conversationId,
		accountId,
		time.Now().UTC(),
	)

	return err
}

// CreateMessage persists a message and its side effects in one transaction:
// the conversation's seq_id advance (the row lock serializes concurrent
// sends), the lastMessage pointer update, and the unread counter increment
// for every participant except the sender.
func (db *PgMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var (
		seqId          int
		convExternalId string
	)
	err = tx.QueryRow(
		"UPDATE conversations SET seq_id = seq_id + 1, updated_at = $2 "+
			"WHERE id = $1 RETURNING seq_id, external_id",
		params.ConversationId,
		time.Now().UTC(),
	).Scan(&seqId, &convExternalId)
	if err != nil {
		return Message{}, err
	}

	var msg Message
	err = tx.QueryRow(
		"INSERT INTO messages (external_id, conversation_id, account_id, seq_id, body, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, external_id, conversation_id, account_id, seq_id, body, created_at, updated_at",
		params.ExternalId,
		params.ConversationId,
		params.AccountId,
		seqId,
		params.Body,
		params.CreatedAt,
	).Scan(
		&msg.Id,
		&msg.ExternalId,
		&msg.ConversationId,
		&msg.AccountId,
		&msg.SeqId,
		&msg.Body,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE conversations SET last_message_id = $2, last_message_at = $3 WHERE id = $1",
		params.ConversationId,
		msg.Id,
		msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE conversation_members SET unread_count = unread_count + 1, updated_at = $3 "+
			"WHERE conversation_id = $1 AND account_id <> $2",
		params.ConversationId,
		params.AccountId,
		time.Now().UTC(),
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	msg.ConversationExternalId = convExternalId
	msg.ReadBy = []int64{}
	msg.Reactions = []Reaction{}

	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ExternalId,
		&msg.ConversationExternalId,
		&msg.ConversationId,
		&msg.AccountId,
		&msg.SeqId,
		&msg.Body,
		pq.Array(&msg.ReadBy),
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	return msg, err
}

func (db *PgMessengerRepository) GetMessageByExternalId(externalId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN conversations c ON m.conversation_id = c.id WHERE m.external_id = $1 LIMIT 1",
		externalId,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, err
	}

	reactions, err := db.getReactions([]int{msg.Id})
	if err != nil {
		return Message{}, err
	}
	msg.Reactions = reactions[msg.Id]
	if msg.Reactions == nil {
		msg.Reactions = []Reaction{}
	}

	return msg, nil
}

func (db *PgMessengerRepository) getReactions(messageIds []int) (map[int][]Reaction, error) {
	rows, err := db.conn.Query(
		"SELECT id, message_id, account_id, emoji, created_at FROM message_reactions "+
			"WHERE message_id = ANY($1) ORDER BY id",
		pq.Array(messageIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := make(map[int][]Reaction)
	for rows.Next() {
		var r Reaction
		if err = rows.Scan(&r.Id, &r.MessageId, &r.AccountId, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}

		reactions[r.MessageId] = append(reactions[r.MessageId], r)
	}

	return reactions, rows.Err()
}

func (db *PgMessengerRepository) GetMessages(conversationId, since, before, limit int) ([]Message, error) {
	var upper, lower int = 1<<31 - 1, 0
	if before > 0 {
		upper = before - 1
	}

	if since > 0 {
		lower = since
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN conversations c ON m.conversation_id = c.id "+
			"WHERE m.conversation_id = $1 AND m.seq_id BETWEEN $2 AND $3 ORDER BY m.seq_id LIMIT $4",
		conversationId,
		lower,
		upper,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	var ids []int
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
		ids = append(ids, msg.Id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		reactions, err := db.getReactions(ids)
		if err != nil {
			return nil, err
		}
		for i := range messages {
			messages[i].Reactions = reactions[messages[i].Id]
			if messages[i].Reactions == nil {
				messages[i].Reactions = []Reaction{}
			}
		}
	}

	return messages, nil
}

func (db *PgMessengerRepository) UpdateMessageBody(externalId, body string) (Message, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET body = $2, updated_at = $3 WHERE external_id = $1",
		externalId,
		body,
		time.Now().UTC(),
	)
	if err != nil {
		return Message{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Message{}, err
	}
	if n == 0 {
		return Message{}, sql.ErrNoRows
	}

	return db.GetMessageByExternalId(externalId)
}

// DeleteMessage removes the message row. The owning conversation's
// last_message_id is deliberately not adjusted, even when it references the
// deleted message.
func (db *PgMessengerRepository) DeleteMessage(externalId string) (Message, error) {
	var msg Message
	err := db.conn.QueryRow(
		"DELETE FROM messages WHERE external_id = $1 RETURNING id, external_id, conversation_id, account_id, seq_id",
		externalId,
	).Scan(
		&msg.Id,
		&msg.ExternalId,
		&msg.ConversationId,
		&msg.AccountId,
		&msg.SeqId,
	)
	if err != nil {
		return Message{}, err
	}

	err = db.conn.QueryRow(
		"SELECT external_id FROM conversations WHERE id = $1",
		msg.ConversationId,
	).Scan(&msg.ConversationExternalId)
	if err != nil {
		return Message{}, fmt.Errorf("resolve conversation for deleted message: %w", err)
	}

	return msg, nil
}

func (db *PgMessengerRepository) AddReaction(messageExternalId string, accountId int, emoji string) (Message, error) {
	var messageId int
	err := db.conn.QueryRow(
		"SELECT id FROM messages WHERE external_id = $1 LIMIT 1",
		messageExternalId,
	).Scan(&messageId)
	if err != nil {
		return Message{}, err
	}

	_, err = db.conn.Exec(
		"INSERT INTO message_reactions (message_id, account_id, emoji, created_at) VALUES ($1, $2, $3, $4)",
		messageId,
		accountId,
		emoji,
		time.Now().UTC(),
	)
	if err != nil {
		return Message{}, err
	}

	return db.GetMessageByExternalId(messageExternalId)
}
