package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit caps how many messages a single history fetch
// returns.
const DefaultHistoryLimit = 100

func (db *PgChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email",
		accountParams.Username,
		accountParams.EmailAddress,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
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

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	msg := Message{
		Id:          uuid.NewString(),
		SenderId:    params.SenderId,
		RecipientId: params.RecipientId,
		Content:     params.Content,
		ItemId:      params.ItemId,
		ItemTitle:   params.ItemTitle,
		CreatedAt:   params.CreatedAt,
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages (id, sender_id, recipient_id, content, read, item_id, item_title, created_at) "+
			"VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7)",
		msg.Id,
		msg.SenderId,
		msg.RecipientId,
		msg.Content,
		nullString(msg.ItemId),
		nullString(msg.ItemTitle),
		msg.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

// ConversationMessages returns the most recent messages exchanged between
// the two users in either direction, ordered oldest to newest.
func (db *PgChatRepository) ConversationMessages(ctx context.Context, userA, userB, limit int) ([]Message, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, sender_id, recipient_id, content, read, item_id, item_title, created_at FROM messages "+
			"WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1) "+
			"ORDER BY created_at DESC LIMIT $3",
		userA,
		userB,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// fetched newest-first for the LIMIT, reversed for display order
	return oldestFirst(messages), nil
}

// oldestFirst reverses a newest-first result set in place so callers see
// messages in chronological order.
func oldestFirst(messages []Message) []Message {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages
}

func (db *PgChatRepository) MarkMessagesRead(ctx context.Context, recipientId, senderId int) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET read = TRUE WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE",
		recipientId,
		senderId,
	)

	return err
}

func (db *PgChatRepository) DeleteConversation(ctx context.Context, userA, userB int) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM messages WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)",
		userA,
		userB,
	)

	return err
}

// ListConversationSummaries fetches every message involving the user,
// newest first, and folds them into one summary per counterpart.
func (db *PgChatRepository) ListConversationSummaries(ctx context.Context, userId int) ([]ConversationSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.sender_id, m.recipient_id, m.content, m.read, m.item_id, m.item_title, m.created_at, a.username "+
			"FROM messages m "+
			"JOIN accounts a ON a.id = CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END "+
			"WHERE m.sender_id = $1 OR m.recipient_id = $1 "+
			"ORDER BY m.created_at DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var messages []Message
	var names []string
	for rows.Next() {
		var (
			msg  Message
			name string
		)
		var itemId, itemTitle sql.NullString
		err := rows.Scan(
			&msg.Id,
			&msg.SenderId,
			&msg.RecipientId,
			&msg.Content,
			&msg.Read,
			&itemId,
			&itemTitle,
			&msg.CreatedAt,
			&name,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		msg.ItemId = itemId.String
		msg.ItemTitle = itemTitle.String
		messages = append(messages, msg)
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summarizeConversations(userId, messages, names), nil
}

type messageScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row messageScanner) (Message, error) {
	var msg Message
	var itemId, itemTitle sql.NullString
	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.RecipientId,
		&msg.Content,
		&msg.Read,
		&itemId,
		&itemTitle,
		&msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	msg.ItemId = itemId.String
	msg.ItemTitle = itemTitle.String
	return msg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
