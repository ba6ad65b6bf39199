package domain

import "time"

// SLAStatus tracks whether a clock is healthy, close to its deadline, or past it.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "ON_TRACK"
	SLAAtRisk   SLAStatus = "AT_RISK"
	SLABreached SLAStatus = "BREACHED"
)

// EscalationLevel is the severity tier reached after a breach.
type EscalationLevel string

const (
	EscalationNone   EscalationLevel = "NONE"
	EscalationLevel1 EscalationLevel = "LEVEL_1"
	EscalationLevel2 EscalationLevel = "LEVEL_2"
	EscalationLevel3 EscalationLevel = "LEVEL_3"
)

// SLARecord holds the per-lifecycle SLA state of a work order. One record per
// active lifecycle; reopening a work order replaces it from scratch.
//
// ResponseBy and ResolveBy are immutable once set. Pause compensation is
// applied at evaluation time (deadline + pause minutes), never by rewriting
// the stored deadlines, so the original commitment stays auditable.
type SLARecord struct {
	ResponseBy         time.Time
	ResolveBy          time.Time
	ResponseStatus     SLAStatus
	ResolutionStatus   SLAStatus
	ResponseBreached   bool
	ResolutionBreached bool
	BreachMinutes      int

	// Resolved budgets and time mode, captured at initialization so status
	// recomputation needs no further policy lookups.
	ResponseMinutes   int
	ResolutionMinutes int
	GraceMinutes      int
	BusinessHoursOnly bool

	StartedAt         time.Time
	ResolutionStartAt time.Time
	RespondedAt       *time.Time
	ResolvedAt        *time.Time

	IsPaused          bool
	PauseStartAt      *time.Time
	TotalPauseMinutes int

	EscalationLevel        EscalationLevel
	EscalatedAt            *time.Time
	EscalatedTo            []string
	ResponseWarningsSent   int
	ResolutionWarningsSent int

	Finalized bool
}

func (s SLAStatus) severity() int {
	switch s {
	case SLABreached:
		return 2
	case SLAAtRisk:
		return 1
	default:
		return 0
	}
}

// WorstStatus returns the more severe of the two clock statuses. Listings
// classify a record by this overall state, so a breached response clock is
// never masked by an on-track resolution clock.
func (r *SLARecord) WorstStatus() SLAStatus {
	if r.ResponseStatus.severity() >= r.ResolutionStatus.severity() {
		return r.ResponseStatus
	}
	return r.ResolutionStatus
}

// Clone returns an independent copy so updates never alias a stored record.
func (r *SLARecord) Clone() *SLARecord {
	if r == nil {
		return nil
	}
	out := *r
	out.EscalatedTo = append([]string(nil), r.EscalatedTo...)
	if r.PauseStartAt != nil {
		t := *r.PauseStartAt
		out.PauseStartAt = &t
	}
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		out.RespondedAt = &t
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	if r.EscalatedAt != nil {
		t := *r.EscalatedAt
		out.EscalatedAt = &t
	}
	return &out
}
