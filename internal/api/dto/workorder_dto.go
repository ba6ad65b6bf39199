package dto

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// CreateWorkOrderRequest payload.
type CreateWorkOrderRequest struct {
	AssetID     string                   `json:"asset_id"`
	TeamID      *string                  `json:"team_id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Priority    domain.WorkOrderPriority `json:"priority"`
	Type        domain.WorkOrderType     `json:"work_order_type"`
}

// ActionRequest payload for lifecycle actions.
type ActionRequest struct {
	Action     string  `json:"action"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	TeamID     *string `json:"team_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// PriorityUpdateRequest payload.
type PriorityUpdateRequest struct {
	Priority domain.WorkOrderPriority `json:"priority"`
}

// WorkOrderSummary response.
type WorkOrderSummary struct {
	ID          string                   `json:"id"`
	ExternalKey string                   `json:"external_key"`
	AssetID     string                   `json:"asset_id"`
	TeamID      *string                  `json:"team_id"`
	AssigneeID  *string                  `json:"assignee_id"`
	Title       string                   `json:"title"`
	Status      domain.WorkOrderStatus   `json:"status"`
	Priority    domain.WorkOrderPriority `json:"priority"`
	Type        domain.WorkOrderType     `json:"work_order_type"`
	SLA         *SLAResponse             `json:"sla,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// WorkOrderDetailResponse provides full work order info.
type WorkOrderDetailResponse struct {
	ID             string                   `json:"id"`
	ExternalKey    string                   `json:"external_key"`
	AssetID        string                   `json:"asset_id"`
	TeamID         *string                  `json:"team_id"`
	AssigneeID     *string                  `json:"assignee_id"`
	Title          string                   `json:"title"`
	Description    string                   `json:"description"`
	Status         domain.WorkOrderStatus   `json:"status"`
	Priority       domain.WorkOrderPriority `json:"priority"`
	Type           domain.WorkOrderType     `json:"work_order_type"`
	SLA            *SLAResponse             `json:"sla,omitempty"`
	AllowedActions []string                 `json:"allowed_actions"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	SubmittedAt    *time.Time               `json:"submitted_at"`
	ApprovedAt     *time.Time               `json:"approved_at"`
	AssignedAt     *time.Time               `json:"assigned_at"`
	ActualStartAt  *time.Time               `json:"actual_start_at"`
	CompletedAt    *time.Time               `json:"completed_at"`
	ClosedAt       *time.Time               `json:"closed_at"`
	Comments       []CommentResponse        `json:"comments"`
	History        []StatusChangeResponse   `json:"history"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID          string                   `json:"id"`
	CommentType domain.CommentType       `json:"comment_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	Attachments []AttachmentResponse     `json:"attachments"`
	CreatedAt   time.Time                `json:"created_at"`
}

// StatusChangeResponse represents an audit trail entry.
type StatusChangeResponse struct {
	ID            string                   `json:"id"`
	FromStatus    domain.WorkOrderStatus   `json:"from_status"`
	ToStatus      domain.WorkOrderStatus   `json:"to_status"`
	Action        string                   `json:"action"`
	ChangedBy     string                   `json:"changed_by"`
	ChangedByType domain.MessageAuthorType `json:"changed_by_type"`
	Reason        string                   `json:"reason,omitempty"`
	ChangedAt     time.Time                `json:"changed_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url,omitempty"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body        string              `json:"body"`
	CommentType *domain.CommentType `json:"comment_type,omitempty"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}
