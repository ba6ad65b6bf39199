package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
)

func testEscalator(t *testing.T) (*Tracker, *Escalator) {
	t.Helper()
	policy := DefaultPolicy()
	calc := testCalculator(t)
	return NewTracker(policy, calc), NewEscalator(policy, calc)
}

func TestWarningsFireOncePerThreshold(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	// 55% of the 60-minute response budget: only the 50% threshold crossed.
	now := start.Add(33 * time.Minute)
	updated := tracker.UpdateStatus(rec, now)
	decision := escalator.Evaluate(updated, wo, now)
	require.Equal(t, []Warning{{Clock: ClockResponse, ThresholdPercent: 50}}, decision.Warnings)

	applied := escalator.Apply(updated, decision, now)
	require.Equal(t, 1, applied.ResponseWarningsSent)

	// Same instant again: nothing new to send.
	again := escalator.Evaluate(applied, wo, now)
	require.Empty(t, again.Warnings)

	// 92%: 75 and 90 are newly crossed, 50 is not repeated.
	later := start.Add(55 * time.Minute)
	updated = tracker.UpdateStatus(applied, later)
	decision = escalator.Evaluate(updated, wo, later)
	require.Equal(t, []Warning{
		{Clock: ClockResponse, ThresholdPercent: 75},
		{Clock: ClockResponse, ThresholdPercent: 90},
	}, decision.Warnings)
}

func TestNoWarningsAfterClockFrozen(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	responded := tracker.MarkResponded(rec, start.Add(10*time.Minute))
	now := start.Add(55 * time.Minute)
	decision := escalator.Evaluate(tracker.UpdateStatus(responded, now), wo, now)
	for _, warning := range decision.Warnings {
		require.NotEqual(t, ClockResponse, warning.Clock)
	}
}

func TestBreachLadderFiresDueSteps(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	// 70 minutes past the resolution deadline: NOTIFY_ASSIGNEE (0) and
	// NOTIFY_SUPERVISOR (60) are due, NOTIFY_MANAGER (240) is not.
	now := rec.ResolveBy.Add(70 * time.Minute)
	updated := tracker.UpdateStatus(rec, now)
	decision := escalator.Evaluate(updated, wo, now)

	var resolutionActions []string
	for _, action := range decision.BreachActions {
		if action.Clock == ClockResolution {
			resolutionActions = append(resolutionActions, action.Action)
		}
	}
	require.Equal(t, []string{"NOTIFY_ASSIGNEE", "NOTIFY_SUPERVISOR"}, resolutionActions)
}

func TestDetermineLevelBands(t *testing.T) {
	_, escalator := testEscalator(t)

	cases := []struct {
		minutes int
		want    domain.EscalationLevel
	}{
		{0, domain.EscalationNone},
		{14, domain.EscalationNone},
		{15, domain.EscalationLevel1},
		{59, domain.EscalationLevel1},
		{60, domain.EscalationLevel2},
		{240, domain.EscalationLevel3},
		{100000, domain.EscalationLevel3},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, escalator.DetermineLevel(tc.minutes), "minutes=%d", tc.minutes)
	}
}

func TestTargetsAreCumulative(t *testing.T) {
	_, escalator := testEscalator(t)

	require.Nil(t, escalator.Targets(domain.EscalationNone))
	require.Equal(t, []string{"supervisor"}, escalator.Targets(domain.EscalationLevel1))
	require.Equal(t, []string{"supervisor", "maintenance_manager"}, escalator.Targets(domain.EscalationLevel2))
	require.Equal(t, []string{"supervisor", "maintenance_manager", "facility_director"}, escalator.Targets(domain.EscalationLevel3))
}

func TestAutoEscalationSuggestsOneStepPromotion(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	// Emergency is already at the cap: no promotion even on a long breach.
	now := rec.ResolveBy.Add(5 * time.Hour)
	updated := tracker.UpdateStatus(rec, now)
	decision := escalator.Evaluate(updated, wo, now)
	require.Nil(t, decision.AutoEscalateTo)

	// A High work order on the same breached record promotes one step.
	high := highBreakdown()
	decision = escalator.Evaluate(updated, high, now)
	require.NotNil(t, decision.AutoEscalateTo)
	require.Equal(t, domain.PriorityEmergency, *decision.AutoEscalateTo)
}

func TestAutoEscalationBelowThresholdDoesNothing(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	now := rec.ResolveBy.Add(30 * time.Minute)
	updated := tracker.UpdateStatus(rec, now)
	decision := escalator.Evaluate(updated, highBreakdown(), now)
	require.Nil(t, decision.AutoEscalateTo, "breach below after_breach_minutes")
}

func TestApplyRecordsEscalation(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	now := rec.ResolveBy.Add(90 * time.Minute)
	updated := tracker.UpdateStatus(rec, now)
	decision := escalator.Evaluate(updated, wo, now)
	require.Equal(t, domain.EscalationLevel2, decision.Level)

	applied := escalator.Apply(updated, decision, now)
	require.Equal(t, domain.EscalationLevel2, applied.EscalationLevel)
	require.NotNil(t, applied.EscalatedAt)
	require.Equal(t, []string{"supervisor", "maintenance_manager"}, applied.EscalatedTo)

	// A lower level later never downgrades the recorded escalation.
	lower := escalator.Apply(applied, Decision{Level: domain.EscalationLevel1}, now)
	require.Equal(t, domain.EscalationLevel2, lower.EscalationLevel)
}

func TestFinalizedRecordYieldsEmptyDecision(t *testing.T) {
	tracker, escalator := testEscalator(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	final := tracker.Finalize(rec, start.Add(10*time.Minute))
	decision := escalator.Evaluate(final, wo, start.Add(48*time.Hour))
	require.Empty(t, decision.Warnings)
	require.Empty(t, decision.BreachActions)
	require.Equal(t, domain.EscalationNone, decision.Level)
}
