package mocks

import (
	"context"
	"time"

	"afterme/internal/model"
	"afterme/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if f, ok := args.Get(0).(func(context.Context, *model.Document) *model.Document); ok {
		return f(ctx, doc), args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Find(ctx context.Context, id string, deleted bool) (*model.Document, error) {
	args := m.Called(ctx, id, deleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, q repository.ListQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) ListRecent(ctx context.Context, ownerID string, limit int) ([]model.Document, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Search(ctx context.Context, q repository.SearchQuery) ([]model.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Export(ctx context.Context, ownerID, folder, subitem string) ([]model.Document, error) {
	args := m.Called(ctx, ownerID, folder, subitem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *model.Document, snapshot *model.VersionSnapshot, newFiles []model.FileAttachment) error {
	args := m.Called(ctx, doc, snapshot, newFiles)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetDeleted(ctx context.Context, id, ownerID string, deleted bool, at time.Time) error {
	args := m.Called(ctx, id, ownerID, deleted, at)
	return args.Error(0)
}

func (m *MockDocumentRepository) BulkSetDeleted(ctx context.Context, ids []string, ownerID string, at time.Time) (int64, error) {
	args := m.Called(ctx, ids, ownerID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) RemoveFile(ctx context.Context, documentID, fileID string) error {
	args := m.Called(ctx, documentID, fileID)
	return args.Error(0)
}

func (m *MockDocumentRepository) AddGrant(ctx context.Context, documentID string, grant model.ShareGrant) error {
	args := m.Called(ctx, documentID, grant)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListSharedWith(ctx context.Context, userID string) ([]model.Document, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Versions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VersionSnapshot), args.Error(1)
}

func (m *MockDocumentRepository) CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]repository.FolderSubitemCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.FolderSubitemCount), args.Error(1)
}

func (m *MockDocumentRepository) FolderStats(ctx context.Context, ownerID string) ([]repository.FolderStat, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.FolderStat), args.Error(1)
}

func (m *MockDocumentRepository) TagFrequency(ctx context.Context, ownerID string) ([]repository.TagCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.TagCount), args.Error(1)
}
