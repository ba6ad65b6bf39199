package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/sla"
	"github.com/spec-kit/workorder-service/internal/workflow"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

type slaFixture struct {
	*fixture
	slaSvc *SLAService
}

func newSLAFixture(t *testing.T) *slaFixture {
	t.Helper()
	f := newFixture(t)

	calendar, err := sla.NewCalendar(sla.DefaultCalendarConfig())
	require.NoError(t, err)
	calc := sla.NewCalculator(calendar)

	policy := sla.DefaultPolicy()
	policy.Defaults[domain.PriorityHigh] = sla.PriorityBudget{
		ResponseMinutes: 60, ResolutionMinutes: 480, BusinessHoursOnly: false,
	}

	slaSvc := NewSLAService(SLADependencies{
		WorkOrderRepo: f.repo,
		Tracker:       sla.NewTracker(policy, calc),
		Escalator:     sla.NewEscalator(policy, calc),
		Dispatcher:    f.dispatcher,
		Metrics:       observability.NewMetrics(),
		BatchSize:     100,
		Now:           f.clock.Now,
	})
	return &slaFixture{fixture: f, slaSvc: slaSvc}
}

func (f *slaFixture) eventsOfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range f.dispatcher.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestSweepEmitsWarningsOnce(t *testing.T) {
	f := newSLAFixture(t)
	wo := f.createHigh(t)
	f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})

	// 45 of 60 response minutes elapsed: the 50% and 75% thresholds are due.
	f.clock.Advance(45 * time.Minute)
	examined, err := f.slaSvc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, examined)

	warnings := f.eventsOfType(events.EventSLAWarning)
	require.Len(t, warnings, 2)

	// The counters were persisted, so an immediate re-sweep stays quiet.
	_, err = f.slaSvc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.eventsOfType(events.EventSLAWarning), 2)

	rec := f.repo.slas[wo.ID]
	require.Equal(t, 2, rec.ResponseWarningsSent)
	require.False(t, rec.ResponseBreached)
}

func TestSweepBreachEscalationAndAutoPromotion(t *testing.T) {
	f := newSLAFixture(t)
	wo := f.createHigh(t)
	f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})

	// Ten hours without response or resolution: response breached by 540
	// minutes, resolution by 120. Level 2 band and auto-promotion both apply.
	f.clock.Advance(10 * time.Hour)
	_, err := f.slaSvc.SweepOnce(context.Background())
	require.NoError(t, err)

	breaches := f.eventsOfType(events.EventSLABreached)
	require.Len(t, breaches, 4)
	var responseActions, resolutionActions []string
	for _, e := range breaches {
		payload := e.Payload.(events.SLABreachedPayload)
		if payload.Clock == sla.ClockResponse {
			responseActions = append(responseActions, payload.Action)
		} else {
			resolutionActions = append(resolutionActions, payload.Action)
		}
	}
	require.ElementsMatch(t, []string{"NOTIFY_ASSIGNEE", "NOTIFY_SUPERVISOR"}, responseActions)
	require.ElementsMatch(t, []string{"NOTIFY_ASSIGNEE", "NOTIFY_SUPERVISOR"}, resolutionActions)

	escalations := f.eventsOfType(events.EventSLAEscalated)
	require.Len(t, escalations, 1)
	escPayload := escalations[0].Payload.(events.SLAEscalatedPayload)
	require.Equal(t, domain.EscalationLevel2, escPayload.Level)
	require.ElementsMatch(t, []string{"supervisor", "maintenance_manager"}, escPayload.Targets)

	promoted := f.eventsOfType(events.EventPriorityAutoEscalated)
	require.Len(t, promoted, 1)
	promoPayload := promoted[0].Payload.(events.PriorityAutoEscalatedPayload)
	require.Equal(t, domain.PriorityHigh, promoPayload.OldPriority)
	require.Equal(t, domain.PriorityEmergency, promoPayload.NewPriority)
	require.Equal(t, domain.PriorityEmergency, f.repo.orders[wo.ID].Priority)

	rec := f.repo.slas[wo.ID]
	require.True(t, rec.ResponseBreached)
	require.True(t, rec.ResolutionBreached)
	require.Equal(t, domain.EscalationLevel2, rec.EscalationLevel)
	require.NotNil(t, rec.EscalatedAt)
	require.Equal(t, 120, rec.BreachMinutes)
}

func TestSweepSkipsFinalizedRecords(t *testing.T) {
	f := newSLAFixture(t)
	wo := f.createHigh(t)
	f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	f.act(t, wo.ID, workflow.ActionCancel, ActionInput{Reason: "duplicate"})

	f.clock.Advance(24 * time.Hour)
	examined, err := f.slaSvc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, examined)
	require.Empty(t, f.eventsOfType(events.EventSLABreached))
}

func TestGetStatusRecomputesAndPersists(t *testing.T) {
	f := newSLAFixture(t)
	wo := f.createHigh(t)
	f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})

	f.clock.Advance(2 * time.Hour)
	got, err := f.slaSvc.GetStatus(context.Background(), wo.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SLABreached, got.SLA.ResponseStatus)
	require.True(t, got.SLA.ResponseBreached)
	require.Equal(t, domain.SLABreached, f.repo.slas[wo.ID].ResponseStatus)
}

func TestListAttentionReturnsBreachedAndAtRisk(t *testing.T) {
	f := newSLAFixture(t)
	stale := f.createHigh(t)
	f.act(t, stale.ID, workflow.ActionSubmit, ActionInput{})

	f.clock.Advance(2 * time.Hour)
	fresh := f.createHigh(t)
	f.act(t, fresh.ID, workflow.ActionSubmit, ActionInput{})

	// Sweep persists clock states: the first order is 90 minutes past its
	// 60-minute response deadline, the second is only halfway through.
	f.clock.Advance(30 * time.Minute)
	_, err := f.slaSvc.SweepOnce(context.Background())
	require.NoError(t, err)

	listed, err := f.slaSvc.ListAttention(context.Background(), nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, stale.ID, listed[0].ID)
	require.Equal(t, domain.SLABreached, listed[0].SLA.ResponseStatus)

	// Classification uses the worst clock: the stale order's resolution clock
	// is still on track, but its breached response clock keeps it out of an
	// ON_TRACK-filtered listing.
	require.Equal(t, domain.SLAOnTrack, listed[0].SLA.ResolutionStatus)
	onTrack, err := f.slaSvc.ListAttention(context.Background(), []domain.SLAStatus{domain.SLAOnTrack}, 50, 0)
	require.NoError(t, err)
	require.Len(t, onTrack, 1)
	require.Equal(t, fresh.ID, onTrack[0].ID)
}

func TestEvaluateWorkOrderWithoutSLAIsNotFound(t *testing.T) {
	f := newSLAFixture(t)
	wo := f.createHigh(t)

	_, err := f.slaSvc.EvaluateWorkOrder(context.Background(), wo.ID)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOT_FOUND", domainErr.Code)
}
