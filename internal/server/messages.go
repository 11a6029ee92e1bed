package server

import (
	"time"

	"github.com/unifound/lostfound-chat/internal/types"
)

// ClientMessage is the envelope for events a client sends over the
// websocket. Exactly one of the event fields is set.
type ClientMessage struct {
	Join   *JoinChat    `json:"join_chat,omitempty"`
	Send   *SendMessage `json:"send_message,omitempty"`
	Read   *MarkAsRead  `json:"mark_as_read,omitempty"`
	Leave  *LeaveChat   `json:"leave_chat,omitempty"`
	client *Client
}

type JoinChat struct {
	RecipientId   int    `json:"recipient_id"`
	RecipientName string `json:"recipient_name,omitempty"`
}

type SendMessage struct {
	SenderId    int       `json:"sender_id,omitempty"`
	SenderName  string    `json:"sender_name,omitempty"`
	RecipientId int       `json:"recipient_id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	ItemId      string    `json:"item_id,omitempty"`
	ItemTitle   string    `json:"item_title,omitempty"`
}

type MarkAsRead struct {
	RoomId string `json:"room_id"`
}

type LeaveChat struct {
	RecipientId int `json:"recipient_id"`
}

// ServerMessage is the envelope for events the server pushes to a client.
type ServerMessage struct {
	History      *MessageHistory      `json:"message_history,omitempty"`
	Message      *types.Message       `json:"receive_message,omitempty"`
	Notification *MessageNotification `json:"new_message_notification,omitempty"`
	Read         *MessagesRead        `json:"messages_read,omitempty"`
	Joined       *PresenceChange      `json:"user_joined,omitempty"`
	Left         *PresenceChange      `json:"user_left,omitempty"`
	Error        string               `json:"error,omitempty"`
}

type MessageHistory struct {
	RoomId   string          `json:"room_id"`
	Messages []types.Message `json:"messages"`
}

// MessageNotification is pushed directly to a recipient's registered
// connection when they are not subscribed to the room the message was
// sent to.
type MessageNotification struct {
	SenderId   int            `json:"sender_id"`
	SenderName string         `json:"sender_name"`
	Content    string         `json:"content"`
	Message    *types.Message `json:"message"`
}

type MessagesRead struct {
	RoomId string `json:"room_id"`
}

type PresenceChange struct {
	UserId   int    `json:"user_id"`
	UserName string `json:"user_name"`
}

func errorMessage(text string) *ServerMessage {
	return &ServerMessage{Error: text}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
