package mocks

import (
	"context"

	"fileshare/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Resolve(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountService) Get(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountService) SetRoles(ctx context.Context, actor *model.Account, id string, isAdmin, isModerator bool) (*model.Account, error) {
	args := m.Called(ctx, actor, id, isAdmin, isModerator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountService) DesignateProtected(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
