package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Message is a single chat utterance between two users. ItemId and
// ItemTitle link the message to the lost-and-found item the conversation
// is about, when the sending client attached one.
type Message struct {
	Id          string    `json:"id"`
	SenderId    int       `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	RecipientId int       `json:"recipient_id"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	ItemId      string    `json:"item_id,omitempty"`
	ItemTitle   string    `json:"item_title,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Conversation is the client-visible summary of all messages between the
// current user and one counterpart.
type Conversation struct {
	UserId          int       `json:"user_id"`
	UserName        string    `json:"user_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
	ItemId          string    `json:"item_id,omitempty"`
	ItemTitle       string    `json:"item_title,omitempty"`
}
