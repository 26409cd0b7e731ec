package mocks

import (
	"context"

	"fileshare/internal/model"
	"fileshare/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockGovernanceService struct {
	mock.Mock
}

func (m *MockGovernanceService) Quota(ctx context.Context, actor *model.Account) (*model.QuotaSummary, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaSummary), args.Error(1)
}

func (m *MockGovernanceService) CreateRequest(ctx context.Context, actor *model.Account, in service.CreateRequestInput) (*model.QuotaModificationRequest, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaModificationRequest), args.Error(1)
}

func (m *MockGovernanceService) ReviewRequest(ctx context.Context, actor *model.Account, id string, in service.ReviewInput) (*model.QuotaModificationRequest, error) {
	args := m.Called(ctx, actor, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaModificationRequest), args.Error(1)
}

func (m *MockGovernanceService) SetOwnLimit(ctx context.Context, actor *model.Account, newLimit int64, reason string) (*model.Account, error) {
	args := m.Called(ctx, actor, newLimit, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockGovernanceService) GetRequest(ctx context.Context, actor *model.Account, id string) (*model.QuotaModificationRequest, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaModificationRequest), args.Error(1)
}

func (m *MockGovernanceService) ListRequests(ctx context.Context, actor *model.Account, status model.RequestStatus, limit, offset int) (*service.RequestListResult, error) {
	args := m.Called(ctx, actor, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RequestListResult), args.Error(1)
}

func (m *MockGovernanceService) ChangeLog(ctx context.Context, actor *model.Account, targetID string, limit, offset int) (*service.ChangeLogResult, error) {
	args := m.Called(ctx, actor, targetID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChangeLogResult), args.Error(1)
}
