package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"afterme/internal/http/middleware"
	"afterme/internal/model"
	"afterme/internal/service"
)

// authUserID returns the acting user id stored by middleware.BearerAuth.
func authUserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(middleware.AuthUserLocalKey).(string)
	return uid
}

// HealthCheck checks DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a trivial liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// collectUploads turns multipart file headers into service uploads.
// The returned closer releases every opened file.
func collectUploads(headers []*multipart.FileHeader) ([]service.FileUpload, func(), error) {
	uploads := make([]service.FileUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %q: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		uploads = append(uploads, service.FileUpload{
			Reader:       f,
			OriginalName: fh.Filename,
			ContentType:  ct,
			Size:         fh.Size,
		})
	}
	return uploads, closeAll, nil
}

func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// UploadDocument creates a document from a multipart form: folder,
// subitem, documentName, optional description/metadata/tags, plus one or
// more files under the "files" field.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORM", "multipart form is required")
		}

		var metadata model.Metadata
		if raw := c.FormValue("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_METADATA", "metadata must be a JSON object")
			}
		}

		uploads, closeAll, err := collectUploads(form.File["files"])
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer closeAll()

		doc, err := svc.Create(c.UserContext(), service.CreateInput{
			OwnerID:      authUserID(c),
			Folder:       model.Folder(c.FormValue("folder")),
			Subitem:      c.FormValue("subitem"),
			DocumentName: c.FormValue("documentName"),
			Description:  c.FormValue("description"),
			Metadata:     metadata,
			Tags:         parseTags(c.FormValue("tags")),
			Files:        uploads,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ListDocuments lists the caller's documents with filters and pagination.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		limit, err := strconv.Atoi(c.Query("limit", "20"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		res, err := svc.List(c.UserContext(), service.ListInput{
			OwnerID:   authUserID(c),
			Folder:    c.Query("folder"),
			Subitem:   c.Query("subitem"),
			Search:    c.Query("search"),
			SortBy:    c.Query("sortBy", "created_at"),
			SortOrder: c.Query("sortOrder", "desc"),
			Page:      page,
			Limit:     limit,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// RecentDocuments lists the caller's most recently updated documents.
func RecentDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		docs, err := svc.Recent(c.UserContext(), authUserID(c), limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"documents": docs})
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

// SearchDocuments matches a term and/or creation date range.
func SearchDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parseDate(c.Query("dateFrom"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "dateFrom must be a date")
		}
		to, err := parseDate(c.Query("dateTo"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "dateTo must be a date")
		}

		docs, err := svc.Search(c.UserContext(), service.SearchInput{
			OwnerID:  authUserID(c),
			Term:     c.Query("q"),
			Folder:   c.Query("folder"),
			DateFrom: from,
			DateTo:   to,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"count": len(docs), "documents": docs})
	}
}

// ExportDocuments streams the caller's documents as a JSON download.
func ExportDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.Export(c.UserContext(), authUserID(c), c.Query("folder"), c.Query("subitem"))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename=documents-export-%d.json`, time.Now().Unix()))
		return c.JSON(fiber.Map{
			"export_date": time.Now().UTC(),
			"count":       len(docs),
			"documents":   docs,
		})
	}
}

// GetDocument returns one owned document by id.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), id, authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// updateRequest is the JSON body accepted by UpdateDocument.
type updateRequest struct {
	DocumentName *string        `json:"document_name"`
	Description  *string        `json:"description"`
	Folder       *string        `json:"folder"`
	Subitem      *string        `json:"subitem"`
	Tags         []string       `json:"tags"`
	Metadata     model.Metadata `json:"metadata"`
}

// UpdateDocument applies a partial patch, snapshotting the previous
// content into the version history.
func UpdateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req updateRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		}

		in := service.UpdateInput{
			DocumentName: req.DocumentName,
			Description:  req.Description,
			Subitem:      req.Subitem,
			Tags:         req.Tags,
			Metadata:     req.Metadata,
		}
		if req.Folder != nil {
			folder := model.Folder(*req.Folder)
			in.Folder = &folder
		}

		doc, err := svc.Update(c.UserContext(), id, authUserID(c), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// AddDocumentFiles appends attachments to an existing document. This is
// a content change and versions the document like any other update.
func AddDocumentFiles(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORM", "multipart form is required")
		}
		uploads, closeAll, err := collectUploads(form.File["files"])
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer closeAll()
		if len(uploads) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "at least one file is required")
		}

		doc, err := svc.Update(c.UserContext(), id, authUserID(c), service.UpdateInput{FilesToAdd: uploads})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument soft-deletes one owned document.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.SoftDelete(c.UserContext(), id, authUserID(c)); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RestoreDocument brings a soft-deleted document back.
func RestoreDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Restore(c.UserContext(), id, authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// bulkDeleteRequest is the JSON body accepted by BulkDeleteDocuments.
type bulkDeleteRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// BulkDeleteDocuments soft-deletes every matching owned document and
// reports how many were affected.
func BulkDeleteDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req bulkDeleteRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		}
		deleted, err := svc.BulkSoftDelete(c.UserContext(), req.DocumentIDs, authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"deleted": deleted})
	}
}

// RemoveDocumentFile detaches one file from a document.
func RemoveDocumentFile(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		fileID := c.Params("fileId")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := uuid.Parse(fileID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid file id format")
		}
		doc, err := svc.RemoveFile(c.UserContext(), id, authUserID(c), fileID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DocumentFileURL returns a presigned download URL for one attachment.
func DocumentFileURL(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		fileID := c.Params("fileId")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := uuid.Parse(fileID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid file id format")
		}
		url, err := svc.FileURL(c.UserContext(), id, authUserID(c), fileID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// DocumentVersions lists a document's historical snapshots.
func DocumentVersions(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		versions, err := svc.Versions(c.UserContext(), id, authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"versions": versions})
	}
}

// shareRequest is the JSON body accepted by ShareDocument.
type shareRequest struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// ShareDocument grants another user access to an owned document.
func ShareDocument(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req shareRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		}
		doc, err := svc.Share(c.UserContext(), id, authUserID(c), req.Email, model.Permission(req.Permission))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// SharedWithMe lists documents other users shared with the caller.
func SharedWithMe(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.SharedWithMe(c.UserContext(), authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"documents": docs})
	}
}

// CountsSummary reports per-(folder, subitem) counts and sizes.
func CountsSummary(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := svc.CountsByFolderAndSubitem(c.UserContext(), authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"counts": counts})
	}
}

// FolderStats reports per-folder totals.
func FolderStats(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.FolderStats(c.UserContext(), authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"stats": stats})
	}
}

// TagFrequencyReport reports tag usage, most frequent first.
func TagFrequencyReport(svc service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tags, err := svc.TagFrequency(c.UserContext(), authUserID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"tags": tags})
	}
}
