package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"afterme/internal/model"
	"afterme/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docCols = []string{
	"id", "owner_id", "folder", "subitem", "document_name", "description",
	"metadata", "tags", "is_shared", "is_deleted", "deleted_at", "version",
	"created_at", "updated_at",
}

var fileCols = []string{
	"id", "document_id", "filename", "original_name", "content_type",
	"size", "storage_key", "position", "uploaded_at",
}

var shareCols = []string{"document_id", "user_id", "email", "permission", "shared_at"}

func docRow(rows *sqlmock.Rows, id string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "owner-1", string(model.FolderIdentification), "Passport", "My Passport", "desc",
		[]byte(`{"notes":"safe"}`), []byte(`["travel"]`), false, false, nil, 1, now, now,
	)
}

// sliceConverter mirrors the pgx driver's acceptance of []string
// arguments (used for ANY($1) clauses), which the default mock driver
// converter rejects.
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return fmt.Sprintf("%v", s), nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockRepo(t *testing.T) (*DocumentPostgres, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	require.NoError(t, err)
	return NewDocumentPostgres(db), mock, func() { db.Close() }
}

func TestDocumentPostgres_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	doc := &model.Document{
		ID:           "doc-1",
		OwnerID:      "owner-1",
		Folder:       model.FolderIdentification,
		Subitem:      "Passport",
		DocumentName: "My Passport",
		Metadata:     model.Metadata{"notes": "safe"},
		Tags:         []string{"travel"},
		Files: []model.FileAttachment{{
			ID: "file-1", Filename: "abc.pdf", OriginalName: "passport.pdf",
			ContentType: "application/pdf", Size: 8,
			StorageKey: "documents/owner-1/abc.pdf", Position: 0, UploadedAt: now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("inserts document and files in one tx", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").
			WithArgs(doc.ID, doc.OwnerID, string(doc.Folder), doc.Subitem, doc.DocumentName,
				doc.Description, sqlmock.AnyArg(), sqlmock.AnyArg(), doc.Version, doc.CreatedAt, doc.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO document_files").
			WithArgs("file-1", doc.ID, "abc.pdf", "passport.pdf", "application/pdf",
				int64(8), "documents/owner-1/abc.pdf", 0, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := repo.Create(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when a file insert fails", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO document_files").
			WillReturnError(errors.New("insert failed"))
		mock.ExpectRollback()

		_, err := repo.Create(ctx, doc)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Find(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found with files and shares", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = (.+) AND is_deleted = (.+)").
			WithArgs("doc-1", false).
			WillReturnRows(docRow(sqlmock.NewRows(docCols), "doc-1", now))
		mock.ExpectQuery("FROM document_files").
			WillReturnRows(sqlmock.NewRows(fileCols).
				AddRow("file-1", "doc-1", "abc.pdf", "passport.pdf", "application/pdf",
					int64(8), "documents/owner-1/abc.pdf", 0, now))
		mock.ExpectQuery("FROM document_shares").
			WillReturnRows(sqlmock.NewRows(shareCols).
				AddRow("doc-1", "friend-1", "friend@example.com", "view", now))

		doc, err := repo.Find(ctx, "doc-1", false)
		require.NoError(t, err)
		assert.Equal(t, "My Passport", doc.DocumentName)
		assert.Equal(t, model.Metadata{"notes": "safe"}, doc.Metadata)
		require.Len(t, doc.Files, 1)
		assert.Equal(t, "documents/owner-1/abc.pdf", doc.Files[0].StorageKey)
		require.Len(t, doc.SharedWith, 1)
		assert.Equal(t, model.PermissionView, doc.SharedWith[0].Permission)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = (.+)").
			WithArgs("missing", false).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Find(ctx, "missing", false)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("counts then pages", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id = (.+) ORDER BY created_at DESC").
			WithArgs("owner-1", 20, 0).
			WillReturnRows(docRow(sqlmock.NewRows(docCols), "doc-1", now))
		mock.ExpectQuery("FROM document_files").
			WillReturnRows(sqlmock.NewRows(fileCols))

		res, err := repo.List(ctx, repository.ListQuery{OwnerID: "owner-1", SortDesc: true, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		require.Len(t, res.Items, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("search filter binds one pattern", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("owner-1", "%passport%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT (.+) FROM documents").
			WithArgs("owner-1", "%passport%", 20, 0).
			WillReturnRows(sqlmock.NewRows(docCols))

		res, err := repo.List(ctx, repository.ListQuery{OwnerID: "owner-1", Search: "passport", Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown sort column falls back to created_at", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("ORDER BY created_at ASC").
			WillReturnRows(sqlmock.NewRows(docCols))

		_, err := repo.List(ctx, repository.ListQuery{OwnerID: "owner-1", SortBy: "evil; DROP TABLE", Limit: 20})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	doc := &model.Document{
		ID: "doc-1", OwnerID: "owner-1",
		Folder: model.FolderIdentification, Subitem: "Passport",
		DocumentName: "Renewed Passport", Version: 2, UpdatedAt: now,
	}
	snapshot := &model.VersionSnapshot{
		Version: 1, DocumentName: "My Passport", UpdatedAt: now.Add(-time.Hour), UpdatedBy: "owner-1",
	}

	t.Run("updates, snapshots and commits", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE documents").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO document_versions").
			WithArgs("doc-1", 1, "My Passport", "", sqlmock.AnyArg(), sqlmock.AnyArg(),
				snapshot.UpdatedAt, "owner-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Update(ctx, doc, snapshot, nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows means gone", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE documents").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Update(ctx, doc, snapshot, nil)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_SetDeleted(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("soft delete stamps deleted_at", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectExec("UPDATE documents").
			WithArgs("doc-1", "owner-1", true, sqlmock.AnyArg(), false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetDeleted(ctx, "doc-1", "owner-1", true, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("restore clears deleted_at", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectExec("UPDATE documents").
			WithArgs("doc-1", "owner-1", false, nil, true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetDeleted(ctx, "doc-1", "owner-1", false, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching row", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectExec("UPDATE documents").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetDeleted(ctx, "doc-1", "owner-1", true, now)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDocumentPostgres_BulkSetDeleted(t *testing.T) {
	ctx := context.Background()
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs(sqlmock.AnyArg(), "owner-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.BulkSetDeleted(ctx, []string{"a", "b", "c"}, "owner-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_RemoveFile(t *testing.T) {
	ctx := context.Background()

	t.Run("removes", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectExec("DELETE FROM document_files").
			WithArgs("doc-1", "file-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.RemoveFile(ctx, "doc-1", "file-1"))
	})

	t.Run("unknown file", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectExec("DELETE FROM document_files").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.RemoveFile(ctx, "doc-1", "nope"), sql.ErrNoRows)
	})
}

func TestDocumentPostgres_AddGrant(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	grant := model.ShareGrant{
		UserID: "friend-1", Email: "friend@example.com",
		Permission: model.PermissionView, SharedAt: now,
	}

	t.Run("inserts grant and flags document", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO document_shares").
			WithArgs("doc-1", "friend-1", "friend@example.com", "view", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE documents SET is_shared").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.AddGrant(ctx, "doc-1", grant))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate grant rolls back", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO document_shares").
			WillReturnError(errors.New("duplicate key value"))
		mock.ExpectRollback()

		assert.Error(t, repo.AddGrant(ctx, "doc-1", grant))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Versions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	repo, mock, done := newMockRepo(t)
	defer done()

	cols := []string{"version", "document_name", "description", "metadata", "tags", "updated_at", "updated_by"}
	mock.ExpectQuery("FROM document_versions").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "My Passport", "", []byte(`{}`), []byte(`[]`), now.Add(-time.Hour), "owner-1").
			AddRow(2, "Renewed Passport", "", []byte(`{"notes":"new"}`), []byte(`["travel"]`), now, "owner-1"))

	snaps, err := repo.Versions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Version)
	assert.Equal(t, []string{"travel"}, snaps[1].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Reports(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("counts by folder and subitem", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		cols := []string{"folder", "subitem", "count", "total_size", "last_updated"}
		mock.ExpectQuery("FROM documents d").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(string(model.FolderIdentification), "Passport", 2, int64(4096), now))

		counts, err := repo.CountsByFolderAndSubitem(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, int64(4096), counts[0].TotalSize)
	})

	t.Run("folder stats", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		cols := []string{"folder", "total_documents", "total_size", "subitem_count", "last_updated"}
		mock.ExpectQuery("FROM documents d").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(string(model.FolderInsurance), 3, int64(1024), 2, now))

		stats, err := repo.FolderStats(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 3, stats[0].TotalDocuments)
	})

	t.Run("tag frequency ordered by count", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()

		mock.ExpectQuery("jsonb_array_elements_text").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"tag", "cnt"}).
				AddRow("legal", 5).
				AddRow("travel", 2))

		tags, err := repo.TagFrequency(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, "legal", tags[0].Tag)
		assert.Equal(t, 5, tags[0].Count)
	})
}
