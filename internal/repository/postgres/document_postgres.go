package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"afterme/internal/model"
	"afterme/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of
// repository.DocumentRepository. It uses database/sql with parameterized
// queries; metadata and tags live in JSONB columns, files, versions and
// share grants in child tables.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const docColumns = `id, owner_id, folder, subitem, document_name, description, metadata, tags, is_shared, is_deleted, deleted_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d        model.Document
		metadata []byte
		tags     []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Folder,
		&d.Subitem,
		&d.DocumentName,
		&d.Description,
		&metadata,
		&tags,
		&d.IsShared,
		&d.IsDeleted,
		&d.DeletedAt,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal(tags, &d.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &d, nil
}

// encodeJSON renders metadata/tags for JSONB columns, substituting the
// empty object/array for nil so the NOT NULL defaults stay meaningful.
func encodeJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case model.Metadata:
		if t == nil {
			return []byte(`{}`), nil
		}
	case []string:
		if t == nil {
			return []byte(`[]`), nil
		}
	}
	return json.Marshal(v)
}

// Create inserts the document row plus its initial file rows in one
// transaction.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	metadata, err := encodeJSON(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	tags, err := encodeJSON(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO documents (id, owner_id, folder, subitem, document_name, description, metadata, tags, is_shared, is_deleted, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, FALSE, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		string(doc.Folder),
		doc.Subitem,
		doc.DocumentName,
		doc.Description,
		metadata,
		tags,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := insertFiles(ctx, tx, doc.ID, doc.Files); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

func insertFiles(ctx context.Context, tx *sql.Tx, documentID string, files []model.FileAttachment) error {
	const q = `
		INSERT INTO document_files (id, document_id, filename, original_name, content_type, size, storage_key, position, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, f := range files {
		if _, err := tx.ExecContext(ctx, q,
			f.ID,
			documentID,
			f.Filename,
			f.OriginalName,
			f.ContentType,
			f.Size,
			f.StorageKey,
			f.Position,
			f.UploadedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// Find fetches one document with files and share grants loaded.
func (r *DocumentPostgres) Find(ctx context.Context, id string, deleted bool) (*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE id = $1 AND is_deleted = $2`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, q, id, deleted))
	if err != nil {
		return nil, err
	}
	docs := []model.Document{*doc}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	if err := r.attachShares(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

// attachFiles loads the file rows for every document in docs, in
// attachment order, with a single query.
func (r *DocumentPostgres) attachFiles(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	byID := make(map[string]int, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
		byID[docs[i].ID] = i
	}

	const q = `
		SELECT id, document_id, filename, original_name, content_type, size, storage_key, position, uploaded_at
		FROM document_files
		WHERE document_id = ANY($1)
		ORDER BY document_id, position
	`
	rows, err := r.db.QueryContext(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f     model.FileAttachment
			docID string
		)
		if err := rows.Scan(&f.ID, &docID, &f.Filename, &f.OriginalName, &f.ContentType, &f.Size, &f.StorageKey, &f.Position, &f.UploadedAt); err != nil {
			return err
		}
		if i, ok := byID[docID]; ok {
			docs[i].Files = append(docs[i].Files, f)
		}
	}
	return rows.Err()
}

// attachShares loads the share grants for every document in docs.
func (r *DocumentPostgres) attachShares(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	byID := make(map[string]int, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
		byID[docs[i].ID] = i
	}

	const q = `
		SELECT document_id, user_id, email, permission, shared_at
		FROM document_shares
		WHERE document_id = ANY($1)
		ORDER BY document_id, shared_at
	`
	rows, err := r.db.QueryContext(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g     model.ShareGrant
			docID string
		)
		if err := rows.Scan(&docID, &g.UserID, &g.Email, &g.Permission, &g.SharedAt); err != nil {
			return err
		}
		if i, ok := byID[docID]; ok {
			docs[i].SharedWith = append(docs[i].SharedWith, g)
		}
	}
	return rows.Err()
}

var listSortColumns = map[string]string{
	"created_at":    "created_at",
	"updated_at":    "updated_at",
	"document_name": "document_name",
}

// List returns a filtered page of non-deleted owned documents plus the
// total count for the same filter.
func (r *DocumentPostgres) List(ctx context.Context, q repository.ListQuery) (*repository.PageResult[model.Document], error) {
	where := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []any{q.OwnerID}

	if q.Folder != "" {
		args = append(args, q.Folder)
		where = append(where, fmt.Sprintf("folder = $%d", len(args)))
	}
	if q.Subitem != "" {
		args = append(args, q.Subitem)
		where = append(where, fmt.Sprintf("subitem = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(document_name ILIKE $%d OR description ILIKE $%d OR metadata->>'notes' ILIKE $%d OR tags::text ILIKE $%d)", n, n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, err
	}

	sortCol, ok := listSortColumns[q.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY %s %s, id DESC LIMIT $%d OFFSET $%d`,
		docColumns, cond, sortCol, dir, len(args)-1, len(args))

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: docs, Total: total}, nil
}

func (r *DocumentPostgres) queryDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListRecent returns the most recently updated non-deleted documents.
func (r *DocumentPostgres) ListRecent(ctx context.Context, ownerID string, limit int) ([]model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE owner_id = $1 AND is_deleted = FALSE ORDER BY updated_at DESC, id DESC LIMIT $2`
	docs, err := r.queryDocuments(ctx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Search matches a term and/or creation date range, newest first.
func (r *DocumentPostgres) Search(ctx context.Context, q repository.SearchQuery) ([]model.Document, error) {
	where := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []any{q.OwnerID}

	if q.Term != "" {
		args = append(args, "%"+q.Term+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(document_name ILIKE $%d OR description ILIKE $%d OR metadata->>'notes' ILIKE $%d OR tags::text ILIKE $%d)", n, n, n, n))
	}
	if q.Folder != "" {
		args = append(args, q.Folder)
		where = append(where, fmt.Sprintf("folder = $%d", len(args)))
	}
	if q.DateFrom != nil {
		args = append(args, *q.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.DateTo != nil {
		args = append(args, *q.DateTo)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	args = append(args, q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		docColumns, strings.Join(where, " AND "), len(args))

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Export returns the full non-deleted owned population, grants omitted.
func (r *DocumentPostgres) Export(ctx context.Context, ownerID, folder, subitem string) ([]model.Document, error) {
	where := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []any{ownerID}
	if folder != "" {
		args = append(args, folder)
		where = append(where, fmt.Sprintf("folder = $%d", len(args)))
	}
	if subitem != "" {
		args = append(args, subitem)
		where = append(where, fmt.Sprintf("subitem = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY folder, subitem, created_at`,
		docColumns, strings.Join(where, " AND "))

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Update rewrites the document row, appends the pre-update snapshot and
// any new file rows, all in one transaction so a reader never observes
// the version increment without its snapshot.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document, snapshot *model.VersionSnapshot, newFiles []model.FileAttachment) error {
	metadata, err := encodeJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	tags, err := encodeJSON(doc.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	snapMetadata, err := encodeJSON(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("encode snapshot metadata: %w", err)
	}
	snapTags, err := encodeJSON(snapshot.Tags)
	if err != nil {
		return fmt.Errorf("encode snapshot tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qUpdate = `
		UPDATE documents
		SET folder = $3, subitem = $4, document_name = $5, description = $6, metadata = $7, tags = $8, version = $9, updated_at = $10
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
	`
	res, err := tx.ExecContext(ctx, qUpdate,
		doc.ID,
		doc.OwnerID,
		string(doc.Folder),
		doc.Subitem,
		doc.DocumentName,
		doc.Description,
		metadata,
		tags,
		doc.Version,
		doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	const qSnapshot = `
		INSERT INTO document_versions (document_id, version, document_name, description, metadata, tags, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, qSnapshot,
		doc.ID,
		snapshot.Version,
		snapshot.DocumentName,
		snapshot.Description,
		snapMetadata,
		snapTags,
		snapshot.UpdatedAt,
		snapshot.UpdatedBy,
	); err != nil {
		return err
	}

	if err := insertFiles(ctx, tx, doc.ID, newFiles); err != nil {
		return err
	}

	return tx.Commit()
}

// SetDeleted flips the soft-delete flag for an owned row currently in
// the opposite state.
func (r *DocumentPostgres) SetDeleted(ctx context.Context, id, ownerID string, deleted bool, at time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &at
	}
	const q = `
		UPDATE documents
		SET is_deleted = $3, deleted_at = $4
		WHERE id = $1 AND owner_id = $2 AND is_deleted = $5
	`
	res, err := r.db.ExecContext(ctx, q, id, ownerID, deleted, deletedAt, !deleted)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkSetDeleted soft-deletes matching owned rows, skipping the rest.
func (r *DocumentPostgres) BulkSetDeleted(ctx context.Context, ids []string, ownerID string, at time.Time) (int64, error) {
	const q = `
		UPDATE documents
		SET is_deleted = TRUE, deleted_at = $3
		WHERE id = ANY($1) AND owner_id = $2 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, q, ids, ownerID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RemoveFile deletes one file row in place.
func (r *DocumentPostgres) RemoveFile(ctx context.Context, documentID, fileID string) error {
	const q = `DELETE FROM document_files WHERE document_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, documentID, fileID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddGrant inserts the grant and marks the document shared in one
// transaction. The (document_id, user_id) primary key rejects duplicate
// grants that race past the service-level check.
func (r *DocumentPostgres) AddGrant(ctx context.Context, documentID string, grant model.ShareGrant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qInsert = `
		INSERT INTO document_shares (document_id, user_id, email, permission, shared_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, qInsert, documentID, grant.UserID, grant.Email, string(grant.Permission), grant.SharedAt); err != nil {
		return err
	}

	const qFlag = `UPDATE documents SET is_shared = TRUE WHERE id = $1`
	if _, err := tx.ExecContext(ctx, qFlag, documentID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListSharedWith returns non-deleted documents granted to userID.
func (r *DocumentPostgres) ListSharedWith(ctx context.Context, userID string) ([]model.Document, error) {
	q := `
		SELECT ` + docColumns + `
		FROM documents
		WHERE is_deleted = FALSE AND id IN (SELECT document_id FROM document_shares WHERE user_id = $1)
		ORDER BY updated_at DESC, id DESC
	`
	docs, err := r.queryDocuments(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, docs); err != nil {
		return nil, err
	}
	if err := r.attachShares(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Versions lists historical snapshots, oldest first.
func (r *DocumentPostgres) Versions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error) {
	const q = `
		SELECT version, document_name, description, metadata, tags, updated_at, updated_by
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version ASC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := make([]model.VersionSnapshot, 0)
	for rows.Next() {
		var (
			s        model.VersionSnapshot
			metadata []byte
			tags     []byte
		)
		if err := rows.Scan(&s.Version, &s.DocumentName, &s.Description, &metadata, &tags, &s.UpdatedAt, &s.UpdatedBy); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode snapshot metadata: %w", err)
		}
		if err := json.Unmarshal(tags, &s.Tags); err != nil {
			return nil, fmt.Errorf("decode snapshot tags: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// CountsByFolderAndSubitem recomputes the per-(folder, subitem) report
// from scratch on every call.
func (r *DocumentPostgres) CountsByFolderAndSubitem(ctx context.Context, ownerID string) ([]repository.FolderSubitemCount, error) {
	const q = `
		SELECT d.folder, d.subitem, COUNT(*), COALESCE(SUM(f.total_size), 0)::BIGINT, MAX(d.updated_at)
		FROM documents d
		LEFT JOIN (
			SELECT document_id, SUM(size) AS total_size FROM document_files GROUP BY document_id
		) f ON f.document_id = d.id
		WHERE d.owner_id = $1 AND d.is_deleted = FALSE
		GROUP BY d.folder, d.subitem
		ORDER BY d.folder ASC, d.subitem ASC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.FolderSubitemCount, 0)
	for rows.Next() {
		var c repository.FolderSubitemCount
		if err := rows.Scan(&c.Folder, &c.Subitem, &c.Count, &c.TotalSize, &c.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FolderStats recomputes the per-folder report from scratch.
func (r *DocumentPostgres) FolderStats(ctx context.Context, ownerID string) ([]repository.FolderStat, error) {
	const q = `
		SELECT d.folder, COUNT(*), COALESCE(SUM(f.total_size), 0)::BIGINT, COUNT(DISTINCT d.subitem), MAX(d.updated_at)
		FROM documents d
		LEFT JOIN (
			SELECT document_id, SUM(size) AS total_size FROM document_files GROUP BY document_id
		) f ON f.document_id = d.id
		WHERE d.owner_id = $1 AND d.is_deleted = FALSE
		GROUP BY d.folder
		ORDER BY d.folder ASC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.FolderStat, 0)
	for rows.Next() {
		var s repository.FolderStat
		if err := rows.Scan(&s.Folder, &s.TotalDocuments, &s.TotalSize, &s.SubitemCount, &s.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TagFrequency counts tag occurrences, most frequent first. Tags are
// stored deduplicated per document, so each document contributes a tag
// at most once.
func (r *DocumentPostgres) TagFrequency(ctx context.Context, ownerID string) ([]repository.TagCount, error) {
	const q = `
		SELECT t.tag, COUNT(*) AS cnt
		FROM documents d
		CROSS JOIN LATERAL jsonb_array_elements_text(d.tags) AS t(tag)
		WHERE d.owner_id = $1 AND d.is_deleted = FALSE
		GROUP BY t.tag
		ORDER BY cnt DESC, t.tag ASC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.TagCount, 0)
	for rows.Next() {
		var c repository.TagCount
		if err := rows.Scan(&c.Tag, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
