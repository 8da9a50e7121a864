package service

import (
	"context"
	"database/sql"
	"testing"

	"afterme/internal/model"
	repoMocks "afterme/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSharingService() (SharingService, *repoMocks.MockDocumentRepository, *repoMocks.MockUserRepository) {
	mDocs := new(repoMocks.MockDocumentRepository)
	mUsers := new(repoMocks.MockUserRepository)
	return NewSharingService(mDocs, mUsers), mDocs, mUsers
}

func TestSharingService_Share(t *testing.T) {
	ctx := context.Background()
	docID := uuid.New().String()
	friend := &model.User{ID: "friend-1", Email: "friend@example.com"}

	t.Run("success", func(t *testing.T) {
		svc, mDocs, mUsers := newSharingService()
		mUsers.On("FindByEmail", mock.Anything, "friend@example.com").Return(friend, nil).Once()
		mDocs.On("Find", mock.Anything, docID, false).Return(ownedDoc(docID), nil).Once()
		mDocs.On("AddGrant", mock.Anything, docID, mock.MatchedBy(func(g model.ShareGrant) bool {
			return g.UserID == "friend-1" &&
				g.Email == "friend@example.com" &&
				g.Permission == model.PermissionView
		})).Return(nil).Once()

		doc, err := svc.Share(ctx, docID, ownerID, "friend@example.com", model.PermissionView)
		require.NoError(t, err)
		assert.True(t, doc.IsShared)
		require.Len(t, doc.SharedWith, 1)
		assert.Equal(t, "friend-1", doc.SharedWith[0].UserID)
		mDocs.AssertExpectations(t)
		mUsers.AssertExpectations(t)
	})

	t.Run("edit permission is recorded", func(t *testing.T) {
		svc, mDocs, mUsers := newSharingService()
		mUsers.On("FindByEmail", mock.Anything, "friend@example.com").Return(friend, nil).Once()
		mDocs.On("Find", mock.Anything, docID, false).Return(ownedDoc(docID), nil).Once()
		mDocs.On("AddGrant", mock.Anything, docID, mock.MatchedBy(func(g model.ShareGrant) bool {
			return g.Permission == model.PermissionEdit
		})).Return(nil).Once()

		_, err := svc.Share(ctx, docID, ownerID, "friend@example.com", model.PermissionEdit)
		require.NoError(t, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, mUsers := newSharingService()
		mUsers.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, sql.ErrNoRows).Once()

		_, err := svc.Share(ctx, docID, ownerID, "ghost@example.com", model.PermissionView)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("blank email", func(t *testing.T) {
		svc, _, _ := newSharingService()
		_, err := svc.Share(ctx, docID, ownerID, "  ", model.PermissionView)
		assert.True(t, IsValidation(err))
	})

	t.Run("bad permission", func(t *testing.T) {
		svc, _, _ := newSharingService()
		_, err := svc.Share(ctx, docID, ownerID, "friend@example.com", "admin")
		assert.True(t, IsValidation(err))
	})

	t.Run("self share", func(t *testing.T) {
		svc, _, mUsers := newSharingService()
		self := &model.User{ID: ownerID, Email: "me@example.com"}
		mUsers.On("FindByEmail", mock.Anything, "me@example.com").Return(self, nil).Once()

		_, err := svc.Share(ctx, docID, ownerID, "me@example.com", model.PermissionView)
		assert.True(t, IsValidation(err))
	})

	t.Run("foreign document", func(t *testing.T) {
		svc, mDocs, mUsers := newSharingService()
		mUsers.On("FindByEmail", mock.Anything, "friend@example.com").Return(friend, nil).Once()
		mDocs.On("Find", mock.Anything, docID, false).Return(ownedDoc(docID), nil).Once()

		_, err := svc.Share(ctx, docID, "someone-else", "friend@example.com", model.PermissionView)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate grant", func(t *testing.T) {
		svc, mDocs, mUsers := newSharingService()
		doc := ownedDoc(docID)
		doc.SharedWith = []model.ShareGrant{{UserID: "friend-1", Permission: model.PermissionView}}
		mUsers.On("FindByEmail", mock.Anything, "friend@example.com").Return(friend, nil).Once()
		mDocs.On("Find", mock.Anything, docID, false).Return(doc, nil).Once()

		_, err := svc.Share(ctx, docID, ownerID, "friend@example.com", model.PermissionView)
		assert.True(t, IsValidation(err))
	})

	t.Run("missing caller", func(t *testing.T) {
		svc, _, _ := newSharingService()
		_, err := svc.Share(ctx, docID, "", "friend@example.com", model.PermissionView)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestSharingService_SharedWithMe(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, mDocs, _ := newSharingService()
		mDocs.On("ListSharedWith", mock.Anything, "friend-1").
			Return([]model.Document{{ID: "doc-1", IsShared: true}}, nil).Once()

		docs, err := svc.SharedWithMe(ctx, "friend-1")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
		mDocs.AssertExpectations(t)
	})

	t.Run("missing caller", func(t *testing.T) {
		svc, _, _ := newSharingService()
		_, err := svc.SharedWithMe(ctx, "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
