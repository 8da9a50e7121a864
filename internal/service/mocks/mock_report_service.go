package mocks

import (
	"context"

	"afterme/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]repository.FolderSubitemCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.FolderSubitemCount), args.Error(1)
}

func (m *MockReportService) FolderStats(ctx context.Context, ownerID string) ([]repository.FolderStat, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.FolderStat), args.Error(1)
}

func (m *MockReportService) TagFrequency(ctx context.Context, ownerID string) ([]repository.TagCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.TagCount), args.Error(1)
}
