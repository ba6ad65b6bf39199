package sla

import (
	"math"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// Tracker owns per-work-order SLA records. Every method is pure: it reads a
// snapshot and returns a new record, leaving persistence to the caller.
type Tracker struct {
	policy Policy
	calc   *Calculator
}

// NewTracker builds a tracker over resolved policy tables and a calculator.
func NewTracker(policy Policy, calc *Calculator) *Tracker {
	return &Tracker{policy: policy, calc: calc}
}

// Initialize creates the SLA record when a work order is submitted. Both
// deadlines are anchored at now; approval later re-anchors the resolution
// clock via StartResolutionClock. The grace period is added to the budget
// before the walk so that it also respects business-hours skipping.
func (t *Tracker) Initialize(wo *domain.WorkOrder, now time.Time) (*domain.SLARecord, error) {
	budget, err := t.policy.ResolveBudget(wo.Type, wo.Priority)
	if err != nil {
		return nil, err
	}

	rec := &domain.SLARecord{
		ResponseMinutes:   budget.ResponseMinutes,
		ResolutionMinutes: budget.ResolutionMinutes,
		GraceMinutes:      budget.GraceMinutes,
		BusinessHoursOnly: budget.BusinessHoursOnly,
		StartedAt:         now,
		ResolutionStartAt: now,
		ResponseStatus:    domain.SLAOnTrack,
		ResolutionStatus:  domain.SLAOnTrack,
		EscalationLevel:   domain.EscalationNone,
	}
	rec.ResponseBy = t.calc.Deadline(now, budget.ResponseMinutes+budget.GraceMinutes, budget.BusinessHoursOnly)
	rec.ResolveBy = t.calc.Deadline(now, budget.ResolutionMinutes+budget.GraceMinutes, budget.BusinessHoursOnly)
	return rec, nil
}

// StartResolutionClock re-anchors the resolution deadline at approval time.
// The response clock keeps running from submission.
func (t *Tracker) StartResolutionClock(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	out.ResolutionStartAt = now
	out.ResolveBy = t.calc.Deadline(now, rec.ResolutionMinutes+rec.GraceMinutes, rec.BusinessHoursOnly)
	return out
}

// UpdateStatus recomputes both clock statuses and the breach duration at now.
// Stored deadlines are never rewritten; pause time shifts the deadline only in
// the adjusted value evaluated here. While a pause is active the in-flight
// span is compensated too, so breach time never accrues during a pause.
func (t *Tracker) UpdateStatus(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil || out.Finalized {
		return out
	}

	pauseMinutes := t.pauseCompensationMinutes(rec, now)
	compensation := time.Duration(pauseMinutes) * time.Minute

	if rec.ResponseMinutes > 0 {
		adjusted := rec.ResponseBy.Add(compensation)
		evalAt := now
		if rec.RespondedAt != nil {
			evalAt = *rec.RespondedAt
		}
		switch {
		case evalAt.After(adjusted):
			out.ResponseStatus = domain.SLABreached
			out.ResponseBreached = true
		case rec.RespondedAt == nil && t.atRisk(rec.StartedAt, now, rec.ResponseMinutes, pauseMinutes, rec.BusinessHoursOnly, rec.GraceMinutes):
			out.ResponseStatus = domain.SLAAtRisk
			out.ResponseBreached = false
		default:
			out.ResponseStatus = domain.SLAOnTrack
			out.ResponseBreached = false
		}
	}

	if rec.ResolutionMinutes > 0 {
		adjusted := rec.ResolveBy.Add(compensation)
		evalAt := now
		if rec.ResolvedAt != nil {
			evalAt = *rec.ResolvedAt
		}
		switch {
		case evalAt.After(adjusted):
			out.ResolutionStatus = domain.SLABreached
			out.ResolutionBreached = true
			out.BreachMinutes = t.calc.ElapsedMinutes(adjusted, evalAt, rec.BusinessHoursOnly)
		case rec.ResolvedAt == nil && t.atRisk(rec.ResolutionStartAt, now, rec.ResolutionMinutes, pauseMinutes, rec.BusinessHoursOnly, rec.GraceMinutes):
			out.ResolutionStatus = domain.SLAAtRisk
			out.ResolutionBreached = false
			out.BreachMinutes = 0
		default:
			out.ResolutionStatus = domain.SLAOnTrack
			out.ResolutionBreached = false
			out.BreachMinutes = 0
		}
	}

	return out
}

// Pause suspends SLA accrual. Pausing an already paused record is a no-op so
// callers never need to track pause state defensively.
func (t *Tracker) Pause(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil || out.IsPaused || out.Finalized {
		return out
	}
	out.IsPaused = true
	pausedAt := now
	out.PauseStartAt = &pausedAt
	return out
}

// Resume ends a pause, folding the wall-clock pause span into
// TotalPauseMinutes. Pauses compensate for externally blocked time regardless
// of the calendar, so the span is calendar minutes even on business-hours
// SLAs. Resuming a record that is not paused is a no-op.
func (t *Tracker) Resume(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil || !out.IsPaused || out.PauseStartAt == nil {
		if out != nil {
			out.IsPaused = false
			out.PauseStartAt = nil
		}
		return out
	}
	span := int(math.Round(now.Sub(*out.PauseStartAt).Minutes()))
	if span > 0 {
		out.TotalPauseMinutes += span
	}
	out.IsPaused = false
	out.PauseStartAt = nil
	return out
}

// MarkResponded freezes the response clock at now, once.
func (t *Tracker) MarkResponded(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil || out.RespondedAt != nil {
		return out
	}
	respondedAt := now
	out.RespondedAt = &respondedAt
	return t.UpdateStatus(out, now)
}

// MarkResolved freezes the resolution clock at now, once.
func (t *Tracker) MarkResolved(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil || out.ResolvedAt != nil {
		return out
	}
	resolvedAt := now
	out.ResolvedAt = &resolvedAt
	return t.UpdateStatus(out, now)
}

// Finalize freezes compliance flags at close. A finalized record is never
// recomputed again; reopening replaces it via Initialize.
func (t *Tracker) Finalize(rec *domain.SLARecord, now time.Time) *domain.SLARecord {
	out := t.Resume(rec, now)
	out = t.UpdateStatus(out, now)
	if out != nil {
		out.Finalized = true
	}
	return out
}

// pauseCompensationMinutes is the accumulated pause total plus the in-flight
// pause span when the record is currently paused.
func (t *Tracker) pauseCompensationMinutes(rec *domain.SLARecord, now time.Time) int {
	total := rec.TotalPauseMinutes
	if rec.IsPaused && rec.PauseStartAt != nil {
		span := int(math.Round(now.Sub(*rec.PauseStartAt).Minutes()))
		if span > 0 {
			total += span
		}
	}
	return total
}

// atRisk reports whether elapsed time has crossed the warning fraction of the
// pause-adjusted budget.
func (t *Tracker) atRisk(start, now time.Time, budgetMinutes, pauseMinutes int, businessHoursOnly bool, graceMinutes int) bool {
	elapsed := t.calc.ElapsedMinutes(start, now, businessHoursOnly)
	adjustedBudget := budgetMinutes + graceMinutes + pauseMinutes
	if adjustedBudget <= 0 {
		return false
	}
	return float64(elapsed) >= float64(t.policy.AtRiskPercent)/100*float64(adjustedBudget)
}
