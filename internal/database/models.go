package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a durable row in the message log. Item linkage is persisted
// alongside the message so a conversation's item association survives
// client cache loss.
type Message struct {
	Id          string
	SenderId    int
	RecipientId int
	Content     string
	Read        bool
	ItemId      string
	ItemTitle   string
	CreatedAt   time.Time
}

// ConversationSummary is the per-counterpart projection of the message
// log: latest message preview, unread count and the most recent item
// linkage between the user and that counterpart.
type ConversationSummary struct {
	CounterpartId   int
	CounterpartName string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
	ItemId          string
	ItemTitle       string
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId    int
	RecipientId int
	Content     string
	ItemId      string
	ItemTitle   string
	CreatedAt   time.Time
}
