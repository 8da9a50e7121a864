package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"afterme/internal/config"
	"afterme/internal/model"
	"afterme/internal/repository"
	"afterme/internal/storage"
)

// allowedContentTypes limits uploads to images, PDFs and common office
// document formats.
var allowedContentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
}

// FileUpload is one incoming file: content stream plus its declared
// attributes.
type FileUpload struct {
	Reader       io.Reader
	OriginalName string
	ContentType  string
	Size         int64
}

// CreateInput carries everything needed to create a document.
type CreateInput struct {
	OwnerID      string
	Folder       model.Folder
	Subitem      string
	DocumentName string
	Description  string
	Metadata     model.Metadata
	Tags         []string
	Files        []FileUpload
}

// UpdateInput is a partial patch. Nil fields are left untouched.
// Metadata merges shallowly into the existing bag; Tags replaces the
// whole set; FilesToAdd appends attachments.
type UpdateInput struct {
	DocumentName *string
	Description  *string
	Folder       *model.Folder
	Subitem      *string
	Tags         []string
	Metadata     model.Metadata
	FilesToAdd   []FileUpload
}

// ListInput holds filters and pagination for List.
type ListInput struct {
	OwnerID   string
	Folder    string
	Subitem   string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// SearchInput holds the parameters for Search.
type SearchInput struct {
	OwnerID  string
	Term     string
	Folder   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"documents"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Pages int              `json:"pages"`
}

// DocumentService is the document lifecycle: creation, retrieval,
// versioned updates, soft-delete/restore and file attachment rules.
type DocumentService interface {
	// Create stores the uploaded blobs, then the record. Blobs already
	// stored are discarded (best effort) if the record fails.
	Create(ctx context.Context, in CreateInput) (*model.Document, error)

	// Get returns one non-deleted document owned by userID.
	Get(ctx context.Context, id, userID string) (*model.Document, error)

	// List returns a filtered page of the caller's non-deleted documents.
	List(ctx context.Context, in ListInput) (*DocumentListResult, error)

	// Recent returns the caller's most recently updated documents.
	Recent(ctx context.Context, userID string, limit int) ([]model.Document, error)

	// Search matches a term and/or creation date range, capped at 50.
	Search(ctx context.Context, in SearchInput) ([]model.Document, error)

	// Export returns the caller's full non-deleted population for a JSON
	// download, share grants omitted.
	Export(ctx context.Context, userID, folder, subitem string) ([]model.Document, error)

	// Update snapshots the current content into the version history,
	// applies the patch and increments the version, atomically.
	Update(ctx context.Context, id, userID string, in UpdateInput) (*model.Document, error)

	// SoftDelete hides a document from all normal queries.
	SoftDelete(ctx context.Context, id, userID string) error

	// Restore brings a soft-deleted document back, version history intact.
	Restore(ctx context.Context, id, userID string) (*model.Document, error)

	// BulkSoftDelete deletes every owned, not-yet-deleted id in the set
	// and reports how many matched. Non-matching ids are skipped.
	BulkSoftDelete(ctx context.Context, ids []string, userID string) (int64, error)

	// RemoveFile detaches one file in place and deletes its blob (best
	// effort; the metadata removal commits regardless).
	RemoveFile(ctx context.Context, id, userID, fileID string) (*model.Document, error)

	// FileURL returns a presigned download URL. The owner and users the
	// document is shared with may call it.
	FileURL(ctx context.Context, id, userID, fileID string) (string, error)

	// Versions lists the document's historical snapshots, oldest first.
	Versions(ctx context.Context, id, userID string) ([]model.VersionSnapshot, error)
}

// documentService is the concrete DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	upload config.UploadConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, upload config.UploadConfig) DocumentService {
	return &documentService{store: store, repo: repo, upload: upload}
}

func (s *documentService) Create(ctx context.Context, in CreateInput) (*model.Document, error) {
	if in.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	if !in.Folder.Valid() {
		return nil, Validationf("invalid folder specified")
	}
	in.Subitem = strings.TrimSpace(in.Subitem)
	in.DocumentName = strings.TrimSpace(in.DocumentName)
	if in.Subitem == "" || in.DocumentName == "" {
		return nil, Validationf("folder, subitem, and document name are required")
	}
	if err := s.checkUploads(in.Files, 0); err != nil {
		return nil, err
	}
	if in.Metadata == nil {
		in.Metadata = model.Metadata{}
	}

	now := time.Now().UTC()
	files, err := s.storeUploads(ctx, in.OwnerID, in.Files, 0, now)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		OwnerID:      in.OwnerID,
		Folder:       in.Folder,
		Subitem:      in.Subitem,
		DocumentName: in.DocumentName,
		Description:  in.Description,
		Metadata:     in.Metadata,
		Tags:         normalizeTags(in.Tags),
		Files:        files,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// The blobs are already stored; discard them so they don't leak.
		s.discardBlobs(ctx, files)
		return nil, fmt.Errorf("save document: %w", err)
	}
	return stored, nil
}

// checkUploads validates count, size and content type of a batch of
// incoming files. existing is the attachment count already on the
// document (zero for create).
func (s *documentService) checkUploads(files []FileUpload, existing int) error {
	if existing == 0 && len(files) == 0 {
		return Validationf("please upload at least one file")
	}
	if existing+len(files) > s.upload.MaxFiles {
		return Validationf("at most %d files per document", s.upload.MaxFiles)
	}
	maxSize := int64(s.upload.MaxFileSizeMB) << 20
	for _, f := range files {
		if f.Reader == nil {
			return Validationf("file %q has no content", f.OriginalName)
		}
		if f.Size > maxSize {
			return Validationf("file %q exceeds the %d MB limit", f.OriginalName, s.upload.MaxFileSizeMB)
		}
		if !allowedContentTypes[f.ContentType] {
			return Validationf("file type %q is not allowed", f.ContentType)
		}
	}
	return nil
}

// storeUploads streams every upload to blob storage and returns the
// resulting attachment records. On failure, blobs stored so far are
// discarded and a StorageError is returned.
func (s *documentService) storeUploads(ctx context.Context, ownerID string, files []FileUpload, startPos int, now time.Time) ([]model.FileAttachment, error) {
	stored := make([]model.FileAttachment, 0, len(files))
	for i, f := range files {
		ext := filepath.Ext(f.OriginalName)
		genName := uuid.New().String() + ext
		key := filepath.ToSlash(filepath.Join("documents", ownerID, genName))

		info, err := s.store.Put(ctx, key, f.Reader, storage.PutObjectOptions{
			Size:        f.Size,
			ContentType: f.ContentType,
			Metadata:    map[string]string{"original-filename": f.OriginalName},
		})
		if err != nil {
			s.discardBlobs(ctx, stored)
			return nil, &StorageError{Op: "put", Err: err}
		}

		stored = append(stored, model.FileAttachment{
			ID:           uuid.New().String(),
			Filename:     genName,
			OriginalName: f.OriginalName,
			ContentType:  f.ContentType,
			Size:         info.Size,
			StorageKey:   info.Key,
			Position:     startPos + i,
			UploadedAt:   now,
		})
	}
	return stored, nil
}

// discardBlobs removes orphaned blobs after a failed create or update.
// Failures are logged, never escalated.
func (s *documentService) discardBlobs(ctx context.Context, files []model.FileAttachment) {
	for _, f := range files {
		if err := s.store.Delete(ctx, f.StorageKey); err != nil {
			logEvent(map[string]any{
				"level": "error",
				"event": "blob_cleanup_failed",
				"key":   f.StorageKey,
				"error": err.Error(),
			})
		}
	}
}

// findOwned loads a non-deleted document and verifies ownership.
// Missing, deleted and foreign documents all come back as ErrNotFound.
func (s *documentService) findOwned(ctx context.Context, id, userID string) (*model.Document, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if id == "" {
		return nil, Validationf("id is required")
	}
	doc, err := s.repo.Find(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.OwnerID != userID {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id, userID string) (*model.Document, error) {
	return s.findOwned(ctx, id, userID)
}

func (s *documentService) List(ctx context.Context, in ListInput) (*DocumentListResult, error) {
	if in.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	if in.Page <= 0 {
		in.Page = 1
	}

	res, err := s.repo.List(ctx, repository.ListQuery{
		OwnerID:  in.OwnerID,
		Folder:   in.Folder,
		Subitem:  in.Subitem,
		Search:   in.Search,
		SortBy:   in.SortBy,
		SortDesc: in.SortOrder != "asc",
		Limit:    in.Limit,
		Offset:   (in.Page - 1) * in.Limit,
	})
	if err != nil {
		return nil, err
	}

	pages := res.Total / in.Limit
	if res.Total%in.Limit != 0 {
		pages++
	}
	return &DocumentListResult{
		Items: res.Items,
		Total: res.Total,
		Page:  in.Page,
		Limit: in.Limit,
		Pages: pages,
	}, nil
}

func (s *documentService) Recent(ctx context.Context, userID string, limit int) ([]model.Document, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListRecent(ctx, userID, limit)
}

func (s *documentService) Search(ctx context.Context, in SearchInput) ([]model.Document, error) {
	if in.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.Search(ctx, repository.SearchQuery{
		OwnerID:  in.OwnerID,
		Term:     in.Term,
		Folder:   in.Folder,
		DateFrom: in.DateFrom,
		DateTo:   in.DateTo,
		Limit:    50,
	})
}

func (s *documentService) Export(ctx context.Context, userID, folder, subitem string) ([]model.Document, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.Export(ctx, userID, folder, subitem)
}

func (s *documentService) Update(ctx context.Context, id, userID string, in UpdateInput) (*model.Document, error) {
	doc, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	// Snapshot the current content before any field changes.
	snapshot := &model.VersionSnapshot{
		Version:      doc.Version,
		DocumentName: doc.DocumentName,
		Description:  doc.Description,
		Metadata:     doc.Metadata,
		Tags:         doc.Tags,
		UpdatedAt:    doc.UpdatedAt,
		UpdatedBy:    userID,
	}

	updated := *doc
	if in.DocumentName != nil {
		name := strings.TrimSpace(*in.DocumentName)
		if name == "" {
			return nil, Validationf("document name cannot be empty")
		}
		updated.DocumentName = name
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.Folder != nil {
		if !in.Folder.Valid() {
			return nil, Validationf("invalid folder specified")
		}
		updated.Folder = *in.Folder
	}
	if in.Subitem != nil {
		sub := strings.TrimSpace(*in.Subitem)
		if sub == "" {
			return nil, Validationf("subitem cannot be empty")
		}
		updated.Subitem = sub
	}
	if in.Tags != nil {
		updated.Tags = normalizeTags(in.Tags)
	}
	if in.Metadata != nil {
		// Shallow merge: new keys override, absent keys are retained.
		merged := make(model.Metadata, len(doc.Metadata)+len(in.Metadata))
		for k, v := range doc.Metadata {
			merged[k] = v
		}
		for k, v := range in.Metadata {
			merged[k] = v
		}
		updated.Metadata = merged
	}

	var newFiles []model.FileAttachment
	now := time.Now().UTC()
	if len(in.FilesToAdd) > 0 {
		if err := s.checkUploads(in.FilesToAdd, len(doc.Files)); err != nil {
			return nil, err
		}
		nextPos := 0
		for _, f := range doc.Files {
			if f.Position >= nextPos {
				nextPos = f.Position + 1
			}
		}
		newFiles, err = s.storeUploads(ctx, userID, in.FilesToAdd, nextPos, now)
		if err != nil {
			return nil, err
		}
	}

	updated.Version = doc.Version + 1
	updated.UpdatedAt = now

	if err := s.repo.Update(ctx, &updated, snapshot, newFiles); err != nil {
		s.discardBlobs(ctx, newFiles)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update document: %w", err)
	}

	updated.Files = append(updated.Files, newFiles...)
	return &updated, nil
}

func (s *documentService) SoftDelete(ctx context.Context, id, userID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if id == "" {
		return Validationf("id is required")
	}
	err := s.repo.SetDeleted(ctx, id, userID, true, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *documentService) Restore(ctx context.Context, id, userID string) (*model.Document, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if id == "" {
		return nil, Validationf("id is required")
	}
	if err := s.repo.SetDeleted(ctx, id, userID, false, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.findOwned(ctx, id, userID)
}

func (s *documentService) BulkSoftDelete(ctx context.Context, ids []string, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUnauthorized
	}
	if len(ids) == 0 {
		return 0, Validationf("document ids are required")
	}
	return s.repo.BulkSetDeleted(ctx, ids, userID, time.Now().UTC())
}

func (s *documentService) RemoveFile(ctx context.Context, id, userID, fileID string) (*model.Document, error) {
	doc, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, f := range doc.Files {
		if f.ID == fileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	if err := s.repo.RemoveFile(ctx, id, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Metadata removal is committed; blob deletion is best effort.
	s.discardBlobs(ctx, doc.Files[idx:idx+1])

	doc.Files = append(doc.Files[:idx], doc.Files[idx+1:]...)
	return doc, nil
}

func (s *documentService) FileURL(ctx context.Context, id, userID, fileID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthorized
	}
	doc, err := s.repo.Find(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if doc.OwnerID != userID {
		if _, ok := doc.GrantFor(userID); !ok {
			return "", ErrNotFound
		}
	}

	for _, f := range doc.Files {
		if f.ID == fileID {
			url, err := s.store.PresignGet(ctx, f.StorageKey, time.Duration(s.upload.PresignExpiry)*time.Minute)
			if err != nil {
				return "", &StorageError{Op: "presign", Err: err}
			}
			return url, nil
		}
	}
	return "", ErrNotFound
}

func (s *documentService) Versions(ctx context.Context, id, userID string) ([]model.VersionSnapshot, error) {
	if _, err := s.findOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repo.Versions(ctx, id)
}

// normalizeTags trims, drops empties and deduplicates while keeping
// first-occurrence order. A duplicate within one document's tag set must
// count once in the frequency report, so the set is deduplicated here at
// write time.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// logEvent writes one JSON log line to the process log.
func logEvent(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal log event: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
