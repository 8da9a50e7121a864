package model

import "time"

// Permission is the access level attached to a share grant.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Metadata is the open key/value bag describing the document itself
// (identity numbers, issue/expiry dates, issuing authority and so on).
// Keys are free-form; well-known keys per document kind are documented
// in openapi.yaml. Updates merge shallowly: new keys override, keys
// absent from the patch are retained.
type Metadata map[string]any

// FileAttachment is one stored file belonging to a document.
// StorageKey references the object in blob storage; Position preserves
// attachment order. Removal is in-place, not a tombstone.
type FileAttachment struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	StorageKey   string    `json:"storage_key"`
	Position     int       `json:"position"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// VersionSnapshot is the content of a document as it was immediately
// before an update superseded it. Snapshots are append-only and ordered
// by the version number they superseded.
type VersionSnapshot struct {
	Version      int       `json:"version"`
	DocumentName string    `json:"document_name"`
	Description  string    `json:"description"`
	Metadata     Metadata  `json:"metadata"`
	Tags         []string  `json:"tags"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedBy    string    `json:"updated_by"`
}

// ShareGrant gives one user access to another user's document.
// At most one grant per (document, user) pair exists.
type ShareGrant struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	Permission Permission `json:"permission"`
	SharedAt   time.Time  `json:"shared_at"`
}

// Document is a user-owned vault record: classification, content,
// attachments, sharing state and lifecycle flags. OwnerID never changes
// after creation. Version starts at 1 and grows by exactly one per
// content-changing update.
type Document struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id"`
	Folder       Folder           `json:"folder"`
	Subitem      string           `json:"subitem"`
	DocumentName string           `json:"document_name"`
	Description  string           `json:"description"`
	Metadata     Metadata         `json:"metadata"`
	Tags         []string         `json:"tags"`
	Files        []FileAttachment `json:"files"`
	IsShared     bool             `json:"is_shared"`
	SharedWith   []ShareGrant     `json:"shared_with,omitempty"`
	IsDeleted    bool             `json:"is_deleted"`
	DeletedAt    *time.Time       `json:"deleted_at,omitempty"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TotalFileSize is the byte size of all current attachments.
// It is always derived from Files, never stored.
func (d *Document) TotalFileSize() int64 {
	var total int64
	for _, f := range d.Files {
		total += f.Size
	}
	return total
}

// GrantFor returns the share grant for userID, if any.
func (d *Document) GrantFor(userID string) (ShareGrant, bool) {
	for _, g := range d.SharedWith {
		if g.UserID == userID {
			return g, true
		}
	}
	return ShareGrant{}, false
}
