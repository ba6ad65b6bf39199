package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(DefaultPolicy(), testCalculator(t))
}

func highBreakdown() *domain.WorkOrder {
	return &domain.WorkOrder{
		ID:       "wo-1",
		Status:   domain.StatusSubmitted,
		Priority: domain.PriorityHigh,
		Type:     domain.TypeBreakdown,
	}
}

func TestInitializeHighBreakdownBusinessHours(t *testing.T) {
	tracker := testTracker(t)

	// Monday 09:00, High/Breakdown: 60-minute response SLA in business time.
	now := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), now)
	require.NoError(t, err)

	require.Equal(t, mustTime(t, "2025-03-03 10:00"), rec.ResponseBy)
	require.True(t, rec.BusinessHoursOnly)
	require.Equal(t, 60, rec.ResponseMinutes)
	require.Equal(t, 480, rec.ResolutionMinutes)
	require.Equal(t, domain.SLAOnTrack, rec.ResponseStatus)
	require.Equal(t, domain.SLAOnTrack, rec.ResolutionStatus)
	require.False(t, rec.IsPaused)
	require.Zero(t, rec.TotalPauseMinutes)
}

func TestInitializeEmergencyUsesCalendarTime(t *testing.T) {
	tracker := testTracker(t)

	// Saturday 22:00, Emergency: 15 calendar minutes regardless of calendar
	// configuration.
	now := mustTime(t, "2025-03-08 22:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, now)
	require.NoError(t, err)

	require.Equal(t, mustTime(t, "2025-03-08 22:15"), rec.ResponseBy)
	require.False(t, rec.BusinessHoursOnly)
}

func TestInitializeSafetyOverrideForcesCalendarTime(t *testing.T) {
	tracker := testTracker(t)

	wo := highBreakdown()
	wo.Type = domain.TypeSafety
	wo.Priority = domain.PriorityLow
	rec, err := tracker.Initialize(wo, mustTime(t, "2025-03-03 09:00"))
	require.NoError(t, err)

	// Low keeps its minute budgets; the SAFETY override only flips the mode.
	require.False(t, rec.BusinessHoursOnly)
	require.Equal(t, 480, rec.ResponseMinutes)
}

func TestInitializeUnknownEnumRejected(t *testing.T) {
	tracker := testTracker(t)
	now := mustTime(t, "2025-03-03 09:00")

	wo := highBreakdown()
	wo.Priority = "SEVERE"
	_, err := tracker.Initialize(wo, now)
	var unknown *UnknownEnumValueError
	require.ErrorAs(t, err, &unknown)

	wo = highBreakdown()
	wo.Type = "PAINTING"
	_, err = tracker.Initialize(wo, now)
	require.ErrorAs(t, err, &unknown)
}

func TestStartResolutionClockReanchorsAtApproval(t *testing.T) {
	tracker := testTracker(t)

	submitted := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), submitted)
	require.NoError(t, err)

	approved := mustTime(t, "2025-03-03 11:00")
	rec2 := tracker.StartResolutionClock(rec, approved)

	require.Equal(t, rec.ResponseBy, rec2.ResponseBy, "response clock keeps its anchor")
	require.Equal(t, approved, rec2.ResolutionStartAt)
	// 480 business minutes from Monday 11:00: 60 to lunch, 240 after lunch
	// to 17:00, 180 on Tuesday from 08:00.
	require.Equal(t, mustTime(t, "2025-03-04 11:00"), rec2.ResolveBy)
}

func TestUpdateStatusOnTrackAtRiskBreached(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	onTrack := tracker.UpdateStatus(rec, start.Add(10*time.Minute))
	require.Equal(t, domain.SLAOnTrack, onTrack.ResponseStatus)

	// 80% of the 60-minute response budget.
	atRisk := tracker.UpdateStatus(rec, start.Add(48*time.Minute))
	require.Equal(t, domain.SLAAtRisk, atRisk.ResponseStatus)
	require.False(t, atRisk.ResponseBreached)

	breached := tracker.UpdateStatus(rec, start.Add(61*time.Minute))
	require.Equal(t, domain.SLABreached, breached.ResponseStatus)
	require.True(t, breached.ResponseBreached)
}

func TestUpdateStatusBreachMinutes(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	// Resolution due Tuesday 09:00 (480 business minutes from Monday 09:00).
	require.Equal(t, mustTime(t, "2025-03-04 09:00"), rec.ResolveBy)

	updated := tracker.UpdateStatus(rec, mustTime(t, "2025-03-04 10:30"))
	require.Equal(t, domain.SLABreached, updated.ResolutionStatus)
	require.True(t, updated.ResolutionBreached)
	require.Equal(t, 90, updated.BreachMinutes)

	// Not breached: zero.
	early := tracker.UpdateStatus(rec, mustTime(t, "2025-03-03 09:30"))
	require.Zero(t, early.BreachMinutes)
}

func TestUpdateStatusDoesNotRewriteDeadlines(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	paused := tracker.Pause(rec, start.Add(10*time.Minute))
	resumed := tracker.Resume(paused, start.Add(100*time.Minute))
	updated := tracker.UpdateStatus(resumed, start.Add(2*time.Hour))

	require.Equal(t, rec.ResponseBy, updated.ResponseBy)
	require.Equal(t, rec.ResolveBy, updated.ResolveBy)
	require.Equal(t, 90, updated.TotalPauseMinutes)
}

func TestPauseResumeIdempotent(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	once := tracker.Pause(rec, start.Add(5*time.Minute))
	twice := tracker.Pause(once, start.Add(15*time.Minute))
	require.True(t, twice.IsPaused)
	require.Equal(t, once.PauseStartAt, twice.PauseStartAt, "second pause is a no-op")

	resumed := tracker.Resume(twice, start.Add(35*time.Minute))
	require.False(t, resumed.IsPaused)
	require.Nil(t, resumed.PauseStartAt)
	require.Equal(t, 30, resumed.TotalPauseMinutes)

	again := tracker.Resume(resumed, start.Add(50*time.Minute))
	require.Equal(t, 30, again.TotalPauseMinutes, "resume without pause is a no-op")
}

func TestPauseCompensationShiftsAdjustedDeadlineOnly(t *testing.T) {
	tracker := testTracker(t)

	// Scenario D: originally due at T, paused 90 minutes then resumed. Not
	// in breach at T+60, in breach at T+100. Use an Emergency record so the
	// arithmetic is pure calendar time.
	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)
	deadline := rec.ResolveBy // T = start + 240m

	paused := tracker.Pause(rec, start.Add(30*time.Minute))
	resumed := tracker.Resume(paused, start.Add(120*time.Minute))
	require.Equal(t, 90, resumed.TotalPauseMinutes)
	require.Equal(t, deadline, resumed.ResolveBy, "stored deadline unchanged")

	inWindow := tracker.UpdateStatus(resumed, deadline.Add(60*time.Minute))
	require.NotEqual(t, domain.SLABreached, inWindow.ResolutionStatus)

	past := tracker.UpdateStatus(resumed, deadline.Add(100*time.Minute))
	require.Equal(t, domain.SLABreached, past.ResolutionStatus)
	require.Equal(t, 10, past.BreachMinutes)
}

func TestBreachFrozenWhilePaused(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityEmergency
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)

	// Pause just before the resolution deadline and evaluate long after it:
	// the in-flight pause span keeps compensating, so no breach accrues.
	paused := tracker.Pause(rec, rec.ResolveBy.Add(-time.Minute))
	updated := tracker.UpdateStatus(paused, rec.ResolveBy.Add(6*time.Hour))
	require.NotEqual(t, domain.SLABreached, updated.ResolutionStatus)
	require.Zero(t, updated.BreachMinutes)
}

func TestMarkRespondedFreezesResponseClock(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	responded := tracker.MarkResponded(rec, start.Add(30*time.Minute))
	require.NotNil(t, responded.RespondedAt)
	require.Equal(t, domain.SLAOnTrack, responded.ResponseStatus)

	// Well past the response deadline the frozen clock stays compliant.
	later := tracker.UpdateStatus(responded, start.Add(5*time.Hour))
	require.Equal(t, domain.SLAOnTrack, later.ResponseStatus)
	require.False(t, later.ResponseBreached)

	// A late response stays breached forever.
	lateResponse := tracker.MarkResponded(rec, start.Add(2*time.Hour))
	require.Equal(t, domain.SLABreached, lateResponse.ResponseStatus)
}

func TestFinalizeFreezesRecord(t *testing.T) {
	tracker := testTracker(t)

	start := mustTime(t, "2025-03-03 09:00")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)

	final := tracker.Finalize(rec, start.Add(30*time.Minute))
	require.True(t, final.Finalized)
	require.Equal(t, domain.SLAOnTrack, final.ResolutionStatus)

	// Recomputation after finalization changes nothing.
	later := tracker.UpdateStatus(final, start.Add(72*time.Hour))
	require.Equal(t, domain.SLAOnTrack, later.ResolutionStatus)
	require.Zero(t, later.BreachMinutes)
}

func TestZeroBudgetDisablesClock(t *testing.T) {
	policy := DefaultPolicy()
	policy.Defaults[domain.PriorityLow] = PriorityBudget{
		ResponseMinutes:   0,
		ResolutionMinutes: 2880,
		BusinessHoursOnly: true,
	}
	tracker := NewTracker(policy, testCalculator(t))

	start := mustTime(t, "2025-03-03 09:00")
	wo := highBreakdown()
	wo.Priority = domain.PriorityLow
	rec, err := tracker.Initialize(wo, start)
	require.NoError(t, err)
	require.Equal(t, start, rec.ResponseBy, "zero budget yields degenerate deadline")

	updated := tracker.UpdateStatus(rec, start.Add(10*time.Hour))
	require.Equal(t, domain.SLAOnTrack, updated.ResponseStatus, "disabled clock never breaches")
}

func TestGracePeriodAddedBeforeWalk(t *testing.T) {
	policy := DefaultPolicy()
	budget := policy.Defaults[domain.PriorityHigh]
	budget.GraceMinutes = 30
	policy.Defaults[domain.PriorityHigh] = budget
	tracker := NewTracker(policy, testCalculator(t))

	// Monday 11:30 with 60+30 grace: grace minutes skip the lunch break too.
	start := mustTime(t, "2025-03-03 11:30")
	rec, err := tracker.Initialize(highBreakdown(), start)
	require.NoError(t, err)
	require.Equal(t, mustTime(t, "2025-03-03 14:00"), rec.ResponseBy)
}
