package domain

import "time"

// StatusChange is an immutable audit trail entry for a status transition.
// Entries are append-only and never reordered.
type StatusChange struct {
	ID            string
	WorkOrderID   string
	FromStatus    WorkOrderStatus
	ToStatus      WorkOrderStatus
	Action        string
	ChangedBy     string
	ChangedByType MessageAuthorType
	Reason        string
	ChangedAt     time.Time
}
