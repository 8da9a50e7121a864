package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"afterme/internal/model"
	"afterme/internal/repository"
)

// SharingService manages access grants from a document owner to other
// users. Permission levels are recorded and exposed; enforcement of
// edit-level access on mutating operations is not part of this release —
// all mutations remain owner-only.
type SharingService interface {
	// Share grants targetEmail access to an owned, non-deleted document.
	// Self-shares and duplicate grants are rejected.
	Share(ctx context.Context, documentID, ownerID, targetEmail string, permission model.Permission) (*model.Document, error)

	// SharedWithMe returns every non-deleted document carrying a grant
	// for userID.
	SharedWithMe(ctx context.Context, userID string) ([]model.Document, error)
}

type sharingService struct {
	docs  repository.DocumentRepository
	users repository.UserRepository
}

// NewSharingService constructs a SharingService.
func NewSharingService(docs repository.DocumentRepository, users repository.UserRepository) SharingService {
	return &sharingService{docs: docs, users: users}
}

func (s *sharingService) Share(ctx context.Context, documentID, ownerID, targetEmail string, permission model.Permission) (*model.Document, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	targetEmail = strings.TrimSpace(targetEmail)
	if targetEmail == "" {
		return nil, Validationf("email is required")
	}
	if !permission.Valid() {
		return nil, Validationf("permission must be %q or %q", model.PermissionView, model.PermissionEdit)
	}

	target, err := s.users.FindByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if target.ID == ownerID {
		return nil, Validationf("cannot share a document with yourself")
	}

	doc, err := s.docs.Find(ctx, documentID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if _, ok := doc.GrantFor(target.ID); ok {
		return nil, Validationf("document already shared with this user")
	}

	grant := model.ShareGrant{
		UserID:     target.ID,
		Email:      target.Email,
		Permission: permission,
		SharedAt:   time.Now().UTC(),
	}
	if err := s.docs.AddGrant(ctx, documentID, grant); err != nil {
		return nil, err
	}

	doc.SharedWith = append(doc.SharedWith, grant)
	doc.IsShared = true
	return doc, nil
}

func (s *sharingService) SharedWithMe(ctx context.Context, userID string) ([]model.Document, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.docs.ListSharedWith(ctx, userID)
}
