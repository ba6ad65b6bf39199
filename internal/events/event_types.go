package events

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/sla"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkOrderCreated         EventType = "work_order_created"
	EventWorkOrderStatusChanged   EventType = "work_order_status_changed"
	EventWorkOrderAssigned        EventType = "work_order_assigned"
	EventWorkOrderCommentAdded    EventType = "work_order_comment_added"
	EventWorkOrderPriorityChanged EventType = "work_order_priority_changed"
	EventSLAWarning               EventType = "sla_warning"
	EventSLABreached              EventType = "sla_breached"
	EventSLAEscalated             EventType = "sla_escalated"
	EventPriorityAutoEscalated    EventType = "priority_auto_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	UserID  *string            `json:"user_id,omitempty"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	WorkOrderID string      `json:"work_order_id"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// WorkOrderCreatedPayload payload.
type WorkOrderCreatedPayload struct {
	AssetID  string                   `json:"asset_id"`
	TeamID   *string                  `json:"team_id,omitempty"`
	Priority domain.WorkOrderPriority `json:"priority"`
	Type     domain.WorkOrderType     `json:"work_order_type"`
	Title    string                   `json:"title"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	Action    string                 `json:"action"`
	OldStatus domain.WorkOrderStatus `json:"old_status"`
	NewStatus domain.WorkOrderStatus `json:"new_status"`
	Reason    string                 `json:"reason,omitempty"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	TeamID     *string `json:"team_id,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   string                   `json:"comment_id"`
	CommentType domain.CommentType       `json:"comment_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// SLAWarningPayload payload.
type SLAWarningPayload struct {
	Clock            sla.ClockKind `json:"clock"`
	ThresholdPercent int           `json:"threshold_percent"`
	Deadline         time.Time     `json:"deadline"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Clock         sla.ClockKind `json:"clock"`
	Action        string        `json:"action"`
	BreachMinutes int           `json:"breach_minutes"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	Level         domain.EscalationLevel `json:"level"`
	Targets       []string               `json:"targets"`
	BreachMinutes int                    `json:"breach_minutes"`
}

// PriorityChangedPayload payload.
type PriorityChangedPayload struct {
	OldPriority domain.WorkOrderPriority `json:"old_priority"`
	NewPriority domain.WorkOrderPriority `json:"new_priority"`
}

// PriorityAutoEscalatedPayload payload.
type PriorityAutoEscalatedPayload struct {
	OldPriority domain.WorkOrderPriority `json:"old_priority"`
	NewPriority domain.WorkOrderPriority `json:"new_priority"`
}
