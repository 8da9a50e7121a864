package service

import (
	"context"

	"afterme/internal/repository"
)

// ReportService derives per-user statistics from the document store.
// Every call recomputes from scratch: correctness is "matches a full
// scan at call time", never a cached view.
type ReportService interface {
	// CountsByFolderAndSubitem groups non-deleted owned documents by
	// (folder, subitem): count, total file size, last-updated timestamp.
	CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]repository.FolderSubitemCount, error)

	// FolderStats groups the same population by folder alone.
	FolderStats(ctx context.Context, ownerID string) ([]repository.FolderStat, error)

	// TagFrequency flattens tag sets into (tag, count) pairs, most
	// frequent first.
	TagFrequency(ctx context.Context, ownerID string) ([]repository.TagCount, error)
}

type reportService struct {
	repo repository.DocumentRepository
}

// NewReportService constructs a ReportService.
func NewReportService(repo repository.DocumentRepository) ReportService {
	return &reportService{repo: repo}
}

func (s *reportService) CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]repository.FolderSubitemCount, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.CountsByFolderAndSubitem(ctx, ownerID)
}

func (s *reportService) FolderStats(ctx context.Context, ownerID string) ([]repository.FolderStat, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.FolderStats(ctx, ownerID)
}

func (s *reportService) TagFrequency(ctx context.Context, ownerID string) ([]repository.TagCount, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.TagFrequency(ctx, ownerID)
}
