package sla

import (
	"math"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// ClockKind distinguishes the response SLA from the resolution SLA.
type ClockKind string

const (
	ClockResponse   ClockKind = "RESPONSE"
	ClockResolution ClockKind = "RESOLUTION"
)

// Warning is a pre-breach notification that just became due.
type Warning struct {
	Clock            ClockKind
	ThresholdPercent int
}

// DueBreachAction is a breach-ladder rung whose delay has elapsed.
type DueBreachAction struct {
	Clock        ClockKind
	Action       string
	DelayMinutes int
}

// Decision is what the policy recommends at one evaluation instant. The
// caller applies it: dispatching notifications, bumping counters via Apply,
// and writing a promoted priority back to the work order.
type Decision struct {
	Warnings       []Warning
	BreachActions  []DueBreachAction
	Level          domain.EscalationLevel
	Targets        []string
	AutoEscalateTo *domain.WorkOrderPriority
}

// Escalator evaluates warning thresholds, breach ladders and auto-escalation.
type Escalator struct {
	policy Policy
	calc   *Calculator
}

// NewEscalator builds an escalator over the same policy and calculator the
// tracker uses.
func NewEscalator(policy Policy, calc *Calculator) *Escalator {
	return &Escalator{policy: policy, calc: calc}
}

// Evaluate inspects an up-to-date record (run UpdateStatus first) and returns
// the actions due at now. It reports only warnings beyond the stored
// counters, so repeated sweeps do not re-recommend a threshold already sent.
func (e *Escalator) Evaluate(rec *domain.SLARecord, wo *domain.WorkOrder, now time.Time) Decision {
	decision := Decision{Level: domain.EscalationNone}
	if rec == nil || rec.Finalized {
		return decision
	}

	pauseMinutes := e.pauseCompensationMinutes(rec, now)

	if rec.ResponseMinutes > 0 && rec.RespondedAt == nil && !rec.ResponseBreached {
		crossed := e.thresholdsCrossed(rec.StartedAt, now, rec.ResponseMinutes, rec.GraceMinutes, pauseMinutes, rec.BusinessHoursOnly)
		for i := rec.ResponseWarningsSent; i < crossed; i++ {
			decision.Warnings = append(decision.Warnings, Warning{
				Clock:            ClockResponse,
				ThresholdPercent: e.policy.WarningThresholds[i],
			})
		}
	}
	if rec.ResolutionMinutes > 0 && rec.ResolvedAt == nil && !rec.ResolutionBreached {
		crossed := e.thresholdsCrossed(rec.ResolutionStartAt, now, rec.ResolutionMinutes, rec.GraceMinutes, pauseMinutes, rec.BusinessHoursOnly)
		for i := rec.ResolutionWarningsSent; i < crossed; i++ {
			decision.Warnings = append(decision.Warnings, Warning{
				Clock:            ClockResolution,
				ThresholdPercent: e.policy.WarningThresholds[i],
			})
		}
	}

	if rec.ResponseBreached && rec.RespondedAt == nil {
		respBreach := e.breachMinutes(rec.ResponseBy, rec.BusinessHoursOnly, pauseMinutes, now)
		decision.BreachActions = append(decision.BreachActions,
			dueSteps(ClockResponse, e.policy.ResponseBreachLadder, respBreach)...)
	}
	if rec.ResolutionBreached && rec.ResolvedAt == nil {
		decision.BreachActions = append(decision.BreachActions,
			dueSteps(ClockResolution, e.policy.ResolutionBreachLadder, rec.BreachMinutes)...)

		decision.Level = e.DetermineLevel(rec.BreachMinutes)
		decision.Targets = e.Targets(decision.Level)

		auto := e.policy.AutoEscalation
		if auto.Enabled && rec.BreachMinutes >= auto.AfterBreachMinutes && wo != nil {
			if wo.Priority.Rank() >= 0 && wo.Priority.Rank() < auto.MaxPriority.Rank() {
				promoted := wo.Priority.Promote(auto.MaxPriority)
				decision.AutoEscalateTo = &promoted
			}
		}
	}

	return decision
}

// Apply folds a decision back into the record: warning counters, escalation
// level, targets and timestamp. Writing a promoted priority onto the work
// order stays the caller's responsibility.
func (e *Escalator) Apply(rec *domain.SLARecord, decision Decision, now time.Time) *domain.SLARecord {
	out := rec.Clone()
	if out == nil {
		return nil
	}
	for _, warning := range decision.Warnings {
		switch warning.Clock {
		case ClockResponse:
			out.ResponseWarningsSent++
		case ClockResolution:
			out.ResolutionWarningsSent++
		}
	}
	if levelRank(decision.Level) > levelRank(out.EscalationLevel) {
		out.EscalationLevel = decision.Level
		escalatedAt := now
		out.EscalatedAt = &escalatedAt
		out.EscalatedTo = append([]string(nil), decision.Targets...)
	}
	return out
}

// DetermineLevel maps a breach duration onto the configured severity bands.
func (e *Escalator) DetermineLevel(breachMinutes int) domain.EscalationLevel {
	level := domain.EscalationNone
	for _, band := range e.policy.EscalationBands {
		if breachMinutes >= band.AfterMinutes {
			level = band.Level
		}
	}
	return level
}

// Targets returns the cumulative role set for a level: every level includes
// the targets of the levels below it.
func (e *Escalator) Targets(level domain.EscalationLevel) []string {
	if level == domain.EscalationNone {
		return nil
	}
	var targets []string
	for _, band := range e.policy.EscalationBands {
		targets = append(targets, e.policy.EscalationTargets[band.Level]...)
		if band.Level == level {
			break
		}
	}
	return targets
}

func (e *Escalator) thresholdsCrossed(start, now time.Time, budgetMinutes, graceMinutes, pauseMinutes int, businessHoursOnly bool) int {
	adjustedBudget := budgetMinutes + graceMinutes + pauseMinutes
	if adjustedBudget <= 0 {
		return 0
	}
	elapsed := e.calc.ElapsedMinutes(start, now, businessHoursOnly)
	percent := float64(elapsed) / float64(adjustedBudget) * 100
	crossed := 0
	for _, threshold := range e.policy.WarningThresholds {
		if percent >= float64(threshold) {
			crossed++
		}
	}
	return crossed
}

func (e *Escalator) breachMinutes(deadline time.Time, businessHoursOnly bool, pauseMinutes int, now time.Time) int {
	adjusted := deadline.Add(time.Duration(pauseMinutes) * time.Minute)
	if !now.After(adjusted) {
		return 0
	}
	return e.calc.ElapsedMinutes(adjusted, now, businessHoursOnly)
}

func (e *Escalator) pauseCompensationMinutes(rec *domain.SLARecord, now time.Time) int {
	total := rec.TotalPauseMinutes
	if rec.IsPaused && rec.PauseStartAt != nil {
		span := int(math.Round(now.Sub(*rec.PauseStartAt).Minutes()))
		if span > 0 {
			total += span
		}
	}
	return total
}

func dueSteps(clock ClockKind, ladder []BreachStep, breachMinutes int) []DueBreachAction {
	var due []DueBreachAction
	for _, step := range ladder {
		if breachMinutes >= step.DelayMinutes {
			due = append(due, DueBreachAction{
				Clock:        clock,
				Action:       step.Action,
				DelayMinutes: step.DelayMinutes,
			})
		}
	}
	return due
}

func levelRank(level domain.EscalationLevel) int {
	switch level {
	case domain.EscalationLevel1:
		return 1
	case domain.EscalationLevel2:
		return 2
	case domain.EscalationLevel3:
		return 3
	default:
		return 0
	}
}
