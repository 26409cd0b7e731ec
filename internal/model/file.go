package model

import "time"

// Visibility controls who may read a file's metadata.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Approval is the moderation state of a file.
type Approval string

const (
	ApprovalApproved Approval = "approved"
	ApprovalPending  Approval = "pending"
)

// FileRecord is the metadata of a stored blob. It is pure domain data with no persistence tags.
// A record only exists once the upload that produced it has committed.
type FileRecord struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Filename    string     `json:"filename"`
	Description string     `json:"description,omitempty"`
	Size        int64      `json:"size"`
	ContentHash string     `json:"content_hash"`
	ContentType string     `json:"content_type"`
	Category    string     `json:"category"`
	StorageKey  string     `json:"storage_key"`
	Visibility  Visibility `json:"visibility"`
	Approval    Approval   `json:"approval"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UploadResult is returned to the uploader: the committed record plus a derived access URL.
type UploadResult struct {
	File *FileRecord `json:"file"`
	URL  string      `json:"url,omitempty"`
}
