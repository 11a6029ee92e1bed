package database

import "context"

type ChatRepository interface {
	Ping() error
	CreateAccount(accountParams CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	ConversationMessages(ctx context.Context, userA, userB, limit int) ([]Message, error)
	MarkMessagesRead(ctx context.Context, recipientId, senderId int) error
	DeleteConversation(ctx context.Context, userA, userB int) error
	ListConversationSummaries(ctx context.Context, userId int) ([]ConversationSummary, error)
}
