package mocks

import (
	"context"
	"time"

	"fileshare/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) Ensure(ctx context.Context, id string, defaultLimit int64) (*model.Account, error) {
	args := m.Called(ctx, id, defaultLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) FindProtected(ctx context.Context) (*model.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) AddUsage(ctx context.Context, id string, delta int64) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) ReserveUsage(ctx context.Context, id string, delta int64) (bool, error) {
	args := m.Called(ctx, id, delta)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) SetLimit(ctx context.Context, id string, limit int64) (bool, error) {
	args := m.Called(ctx, id, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) SetRoles(ctx context.Context, id string, isAdmin, isModerator bool) error {
	args := m.Called(ctx, id, isAdmin, isModerator)
	return args.Error(0)
}

func (m *MockAccountRepository) Designate(ctx context.Context, id string, caps model.Capability) error {
	args := m.Called(ctx, id, caps)
	return args.Error(0)
}

func (m *MockAccountRepository) RecalculateUsage(ctx context.Context, grace time.Duration) (int64, error) {
	args := m.Called(ctx, grace)
	return args.Get(0).(int64), args.Error(1)
}
