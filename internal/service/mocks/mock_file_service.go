package mocks

import (
	"context"

	"fileshare/internal/model"
	"fileshare/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Upload(ctx context.Context, actor *model.Account, in service.UploadInput) (*model.UploadResult, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResult), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, actor *model.Account, limit, offset int) (*service.FileListResult, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileListResult), args.Error(1)
}

func (m *MockFileService) Get(ctx context.Context, actor *model.Account, id string) (*model.UploadResult, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResult), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, actor *model.Account, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}
