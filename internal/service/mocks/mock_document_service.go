package mocks

import (
	"context"

	"afterme/internal/model"
	"afterme/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, in service.CreateInput) (*model.Document, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id, userID string) (*model.Document, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, in service.ListInput) (*service.DocumentListResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Recent(ctx context.Context, userID string, limit int) ([]model.Document, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Search(ctx context.Context, in service.SearchInput) ([]model.Document, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Export(ctx context.Context, userID, folder, subitem string) ([]model.Document, error) {
	args := m.Called(ctx, userID, folder, subitem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, id, userID string, in service.UpdateInput) (*model.Document, error) {
	args := m.Called(ctx, id, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) SoftDelete(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockDocumentService) Restore(ctx context.Context, id, userID string) (*model.Document, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) BulkSoftDelete(ctx context.Context, ids []string, userID string) (int64, error) {
	args := m.Called(ctx, ids, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentService) RemoveFile(ctx context.Context, id, userID, fileID string) (*model.Document, error) {
	args := m.Called(ctx, id, userID, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) FileURL(ctx context.Context, id, userID, fileID string) (string, error) {
	args := m.Called(ctx, id, userID, fileID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Versions(ctx context.Context, id, userID string) ([]model.VersionSnapshot, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VersionSnapshot), args.Error(1)
}
