package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) ConversationMessages(ctx context.Context, userA, userB, limit int) ([]Message, error) {
	args := m.Called(ctx, userA, userB, limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) MarkMessagesRead(ctx context.Context, recipientId, senderId int) error {
	args := m.Called(ctx, recipientId, senderId)
	return args.Error(0)
}
func (m *MockChatRepository) DeleteConversation(ctx context.Context, userA, userB int) error {
	args := m.Called(ctx, userA, userB)
	return args.Error(0)
}
func (m *MockChatRepository) ListConversationSummaries(ctx context.Context, userId int) ([]ConversationSummary, error) {
	args := m.Called(ctx, userId)
	if summaries, ok := args.Get(0).([]ConversationSummary); ok {
		return summaries, args.Error(1)
	}
	return nil, args.Error(1)
}
