package items

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockItemService struct {
	mock.Mock
}

func (m *MockItemService) ResolveItem(ctx context.Context, itemId, token string) error {
	args := m.Called(ctx, itemId, token)
	return args.Error(0)
}
