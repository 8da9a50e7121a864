package mocks

import (
	"context"

	"afterme/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockSharingService struct {
	mock.Mock
}

func (m *MockSharingService) Share(ctx context.Context, documentID, ownerID, targetEmail string, permission model.Permission) (*model.Document, error) {
	args := m.Called(ctx, documentID, ownerID, targetEmail, permission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockSharingService) SharedWithMe(ctx context.Context, userID string) ([]model.Document, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}
