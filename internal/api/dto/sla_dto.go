package dto

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// SLAResponse mirrors the SLA record for API consumers.
type SLAResponse struct {
	ResponseBy         time.Time              `json:"response_by"`
	ResolveBy          time.Time              `json:"resolve_by"`
	ResponseStatus     domain.SLAStatus       `json:"response_status"`
	ResolutionStatus   domain.SLAStatus       `json:"resolution_status"`
	ResponseBreached   bool                   `json:"response_breached"`
	ResolutionBreached bool                   `json:"resolution_breached"`
	BreachMinutes      int                    `json:"breach_minutes"`
	BusinessHoursOnly  bool                   `json:"business_hours_only"`
	IsPaused           bool                   `json:"is_paused"`
	TotalPauseMinutes  int                    `json:"total_pause_minutes"`
	RespondedAt        *time.Time             `json:"responded_at"`
	ResolvedAt         *time.Time             `json:"resolved_at"`
	EscalationLevel    domain.EscalationLevel `json:"escalation_level"`
	EscalatedAt        *time.Time             `json:"escalated_at"`
	EscalatedTo        []string               `json:"escalated_to,omitempty"`
	Finalized          bool                   `json:"finalized"`
}
