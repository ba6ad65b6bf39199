package domain

import "time"

// MessageAuthorType indicates who authored a comment or change.
type MessageAuthorType string

const (
	AuthorTypeUser   MessageAuthorType = "USER"
	AuthorTypeStaff  MessageAuthorType = "STAFF"
	AuthorTypeSystem MessageAuthorType = "SYSTEM"
)

// CommentType differentiates public comments from internal notes.
type CommentType string

const (
	CommentTypePublic       CommentType = "PUBLIC"
	CommentTypeInternalNote CommentType = "INTERNAL_NOTE"
	CommentTypeSystemEvent  CommentType = "SYSTEM_EVENT"
)

// Comment captures communications on a work order.
type Comment struct {
	ID          string
	WorkOrderID string
	AuthorType  MessageAuthorType
	AuthorID    *string
	CommentType CommentType
	Body        string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for uploaded files on a comment.
type AttachmentReference struct {
	ID         string
	CommentID  string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
