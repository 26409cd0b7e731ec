package mocks

import (
	"context"

	"fileshare/internal/model"
	"fileshare/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockQuotaRequestRepository struct {
	mock.Mock
}

func (m *MockQuotaRequestRepository) Create(ctx context.Context, r *model.QuotaModificationRequest) (*model.QuotaModificationRequest, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaModificationRequest), args.Error(1)
}

func (m *MockQuotaRequestRepository) FindByID(ctx context.Context, id string) (*model.QuotaModificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaModificationRequest), args.Error(1)
}

func (m *MockQuotaRequestRepository) List(ctx context.Context, status model.RequestStatus, pq repository.PageQuery) (*repository.PageResult[model.QuotaModificationRequest], error) {
	args := m.Called(ctx, status, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.QuotaModificationRequest]), args.Error(1)
}

func (m *MockQuotaRequestRepository) Resolve(ctx context.Context, r *model.QuotaModificationRequest) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockQuotaRequestRepository) Approve(ctx context.Context, r *model.QuotaModificationRequest, e *model.QuotaChangeLogEntry) error {
	args := m.Called(ctx, r, e)
	return args.Error(0)
}

type MockQuotaLogRepository struct {
	mock.Mock
}

func (m *MockQuotaLogRepository) Append(ctx context.Context, e *model.QuotaChangeLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockQuotaLogRepository) List(ctx context.Context, targetID string, pq repository.PageQuery) (*repository.PageResult[model.QuotaChangeLogEntry], error) {
	args := m.Called(ctx, targetID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.QuotaChangeLogEntry]), args.Error(1)
}
