package repository

import (
	"context"
	"time"

	"afterme/internal/model"
)

// DocumentRepository defines data access for vault documents using SQL
// queries only. No business rules here — ownership and lifecycle checks
// belong to the service layer; the repository enforces them only where a
// WHERE clause must be atomic with the write.
type DocumentRepository interface {
	// Create inserts a document together with its initial file rows.
	// The caller provides IDs and timestamps.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Find returns one document with its files and share grants loaded.
	// deleted selects the soft-delete population to search in.
	// Returns sql.ErrNoRows when no row matches.
	Find(ctx context.Context, id string, deleted bool) (*model.Document, error)

	// List returns a filtered, sorted page of non-deleted documents owned
	// by q.OwnerID, with files loaded, plus the total row count.
	List(ctx context.Context, q ListQuery) (*PageResult[model.Document], error)

	// ListRecent returns the most recently updated non-deleted documents.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]model.Document, error)

	// Search returns non-deleted owned documents matching a term and/or
	// creation date range, newest first, capped at q.Limit.
	Search(ctx context.Context, q SearchQuery) ([]model.Document, error)

	// Export returns every non-deleted owned document (optionally scoped
	// to folder/subitem) with files loaded and share grants omitted.
	Export(ctx context.Context, ownerID, folder, subitem string) ([]model.Document, error)

	// Update persists an updated document atomically: the pre-update
	// snapshot row is inserted, the document row is rewritten with the
	// incremented version, and any new file rows are appended — all in
	// one transaction. The owner id is never part of the SET list.
	// Returns sql.ErrNoRows when the document is absent, deleted, or
	// owned by someone else.
	Update(ctx context.Context, doc *model.Document, snapshot *model.VersionSnapshot, newFiles []model.FileAttachment) error

	// SetDeleted flips the soft-delete flag. The row must currently be in
	// the opposite state and owned by ownerID, else sql.ErrNoRows.
	SetDeleted(ctx context.Context, id, ownerID string, deleted bool, at time.Time) error

	// BulkSetDeleted soft-deletes every listed id that is owned by
	// ownerID and not already deleted, returning how many rows changed.
	BulkSetDeleted(ctx context.Context, ids []string, ownerID string, at time.Time) (int64, error)

	// RemoveFile deletes one file row in place. sql.ErrNoRows when the
	// file does not belong to the document.
	RemoveFile(ctx context.Context, documentID, fileID string) error

	// AddGrant appends a share grant and marks the document shared.
	AddGrant(ctx context.Context, documentID string, grant model.ShareGrant) error

	// ListSharedWith returns non-deleted documents carrying a grant for
	// userID, with files and grants loaded.
	ListSharedWith(ctx context.Context, userID string) ([]model.Document, error)

	// Versions returns the historical snapshots of a document ordered by
	// the version they superseded, ascending.
	Versions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error)

	// CountsByFolderAndSubitem groups the non-deleted owned population by
	// (folder, subitem), ascending on both.
	CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]FolderSubitemCount, error)

	// FolderStats groups the same population by folder alone.
	FolderStats(ctx context.Context, ownerID string) ([]FolderStat, error)

	// TagFrequency counts tag occurrences across the non-deleted owned
	// population, most frequent first.
	TagFrequency(ctx context.Context, ownerID string) ([]TagCount, error)
}

// ListQuery holds filtering, sorting and pagination for List.
type ListQuery struct {
	OwnerID  string
	Folder   string
	Subitem  string
	Search   string
	SortBy   string // created_at, updated_at or document_name
	SortDesc bool
	Limit    int
	Offset   int
}

// SearchQuery holds the parameters for Search.
type SearchQuery struct {
	OwnerID  string
	Term     string
	Folder   string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// FolderSubitemCount is one (folder, subitem) aggregation group.
type FolderSubitemCount struct {
	Folder      model.Folder `json:"folder"`
	Subitem     string       `json:"subitem"`
	Count       int          `json:"count"`
	TotalSize   int64        `json:"total_size"`
	LastUpdated time.Time    `json:"last_updated"`
}

// FolderStat is one per-folder aggregation group.
type FolderStat struct {
	Folder         model.Folder `json:"folder"`
	TotalDocuments int          `json:"total_documents"`
	TotalSize      int64        `json:"total_size"`
	SubitemCount   int          `json:"subitem_count"`
	LastUpdated    time.Time    `json:"last_updated"`
}

// TagCount is one entry of the tag frequency report.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
