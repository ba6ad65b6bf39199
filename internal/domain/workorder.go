package domain

import "time"

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus string

const (
	StatusDraft        WorkOrderStatus = "DRAFT"
	StatusSubmitted    WorkOrderStatus = "SUBMITTED"
	StatusApproved     WorkOrderStatus = "APPROVED"
	StatusAssigned     WorkOrderStatus = "ASSIGNED"
	StatusInProgress   WorkOrderStatus = "IN_PROGRESS"
	StatusOnHold       WorkOrderStatus = "ON_HOLD"
	StatusPendingParts WorkOrderStatus = "PENDING_PARTS"
	StatusCompleted    WorkOrderStatus = "COMPLETED"
	StatusClosed       WorkOrderStatus = "CLOSED"
	StatusCancelled    WorkOrderStatus = "CANCELLED"
)

// WorkOrderPriority enumerates SLA urgency, highest first.
type WorkOrderPriority string

const (
	PriorityEmergency WorkOrderPriority = "EMERGENCY"
	PriorityHigh      WorkOrderPriority = "HIGH"
	PriorityMedium    WorkOrderPriority = "MEDIUM"
	PriorityLow       WorkOrderPriority = "LOW"
)

// priorityRank orders priorities for escalation; higher is more urgent.
var priorityRank = map[WorkOrderPriority]int{
	PriorityLow:       0,
	PriorityMedium:    1,
	PriorityHigh:      2,
	PriorityEmergency: 3,
}

// Rank returns the ordinal urgency of a priority, -1 for unknown values.
func (p WorkOrderPriority) Rank() int {
	rank, ok := priorityRank[p]
	if !ok {
		return -1
	}
	return rank
}

// Promote returns the next more urgent priority, capped at max.
func (p WorkOrderPriority) Promote(max WorkOrderPriority) WorkOrderPriority {
	if p.Rank() < 0 {
		return p
	}
	for candidate, rank := range priorityRank {
		if rank == p.Rank()+1 && rank <= max.Rank() {
			return candidate
		}
	}
	return p
}

// WorkOrderType categorizes the maintenance work being requested.
type WorkOrderType string

const (
	TypeBreakdown  WorkOrderType = "BREAKDOWN"
	TypePreventive WorkOrderType = "PREVENTIVE"
	TypeInspection WorkOrderType = "INSPECTION"
	TypeProject    WorkOrderType = "PROJECT"
	TypeSafety     WorkOrderType = "SAFETY"
)

// WorkOrder is the aggregate for maintenance requests.
type WorkOrder struct {
	ID            string
	ExternalKey   string
	RequesterID   string
	AssetID       string
	TeamID        *string
	AssigneeID    *string
	Title         string
	Description   string
	Status        WorkOrderStatus
	Priority      WorkOrderPriority
	Type          WorkOrderType
	SLA           *SLARecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SubmittedAt   *time.Time
	ApprovedAt    *time.Time
	AssignedAt    *time.Time
	ActualStartAt *time.Time
	CompletedAt   *time.Time
	ClosedAt      *time.Time
}

// Active reports whether the work order still carries a running lifecycle.
func (w *WorkOrder) Active() bool {
	switch w.Status {
	case StatusClosed, StatusCancelled:
		return false
	default:
		return true
	}
}
