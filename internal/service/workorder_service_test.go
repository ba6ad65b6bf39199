package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/sla"
	"github.com/spec-kit/workorder-service/internal/workflow"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// memWorkOrderRepo mimics the postgres repository including the optimistic
// lock on updated_at.
type memWorkOrderRepo struct {
	orders map[string]*domain.WorkOrder
	slas   map[string]*domain.SLARecord
	seq    int
	clock  *fakeClock

	// afterGet, when set, runs after GetByID has taken its snapshot. Lets a
	// test interpose a competing write between a read and the guarded update.
	afterGet func(id string)
}

func newMemWorkOrderRepo(clock *fakeClock) *memWorkOrderRepo {
	return &memWorkOrderRepo{
		orders: map[string]*domain.WorkOrder{},
		slas:   map[string]*domain.SLARecord{},
		clock:  clock,
	}
}

func (r *memWorkOrderRepo) Create(_ context.Context, wo *domain.WorkOrder) error {
	r.seq++
	wo.ID = fmt.Sprintf("wo-%d", r.seq)
	wo.CreatedAt = r.clock.Now()
	wo.UpdatedAt = wo.CreatedAt
	clone := *wo
	r.orders[wo.ID] = &clone
	return nil
}

func (r *memWorkOrderRepo) Update(_ context.Context, wo *domain.WorkOrder, expectedUpdatedAt time.Time) error {
	stored, ok := r.orders[wo.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return repository.ErrVersionConflict
	}
	wo.UpdatedAt = r.clock.Now().Add(time.Millisecond)
	clone := *wo
	r.orders[wo.ID] = &clone
	return nil
}

func (r *memWorkOrderRepo) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	stored, ok := r.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	clone.SLA = r.slas[id].Clone()
	if r.afterGet != nil {
		r.afterGet(id)
	}
	return &clone, nil
}

func (r *memWorkOrderRepo) GetByExternalKey(_ context.Context, key string) (*domain.WorkOrder, error) {
	for _, wo := range r.orders {
		if wo.ExternalKey == key {
			clone := *wo
			clone.SLA = r.slas[wo.ID].Clone()
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memWorkOrderRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.WorkOrder, error) {
	var out []domain.WorkOrder
	for _, wo := range r.orders {
		if wo.RequesterID == userID {
			out = append(out, *wo)
		}
	}
	return out, nil
}

func (r *memWorkOrderRepo) ListWithFilter(_ context.Context, filter repository.WorkOrderFilter) ([]domain.WorkOrder, error) {
	var out []domain.WorkOrder
	for _, wo := range r.orders {
		if filter.RequesterID != nil && wo.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (wo.AssigneeID == nil || *wo.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.TeamID != nil && (wo.TeamID == nil || *wo.TeamID != *filter.TeamID) {
			continue
		}
		out = append(out, *wo)
	}
	return out, nil
}

func (r *memWorkOrderRepo) SaveSLA(_ context.Context, workOrderID string, rec *domain.SLARecord) error {
	r.slas[workOrderID] = rec.Clone()
	return nil
}

func (r *memWorkOrderRepo) DeleteSLA(_ context.Context, workOrderID string) error {
	delete(r.slas, workOrderID)
	return nil
}

func (r *memWorkOrderRepo) ListActiveWithSLA(_ context.Context, _ int) ([]domain.WorkOrder, error) {
	var out []domain.WorkOrder
	for id, rec := range r.slas {
		wo := r.orders[id]
		if wo == nil || !wo.Active() || rec.Finalized {
			continue
		}
		clone := *wo
		clone.SLA = rec.Clone()
		out = append(out, clone)
	}
	return out, nil
}

func (r *memWorkOrderRepo) ListSLAAttention(_ context.Context, statuses []domain.SLAStatus, _, _ int) ([]domain.WorkOrder, error) {
	if len(statuses) == 0 {
		statuses = []domain.SLAStatus{domain.SLAAtRisk, domain.SLABreached}
	}
	match := func(s domain.SLAStatus) bool {
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
	var out []domain.WorkOrder
	for id, rec := range r.slas {
		wo := r.orders[id]
		if wo == nil || !wo.Active() || rec.Finalized {
			continue
		}
		if !match(rec.WorstStatus()) {
			continue
		}
		clone := *wo
		clone.SLA = rec.Clone()
		out = append(out, clone)
	}
	return out, nil
}

type memAssetRepo struct{ assets map[string]*domain.Asset }

func (r *memAssetRepo) Create(_ context.Context, a *domain.Asset) error { r.assets[a.ID] = a; return nil }
func (r *memAssetRepo) Update(_ context.Context, a *domain.Asset) error { r.assets[a.ID] = a; return nil }
func (r *memAssetRepo) GetByID(_ context.Context, id string) (*domain.Asset, error) {
	if a, ok := r.assets[id]; ok {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *memAssetRepo) List(_ context.Context, _ bool) ([]domain.Asset, error) { return nil, nil }

type memTeamRepo struct{ teams map[string]*domain.Team }

func (r *memTeamRepo) Create(_ context.Context, t *domain.Team) error { r.teams[t.ID] = t; return nil }
func (r *memTeamRepo) Update(_ context.Context, t *domain.Team) error { r.teams[t.ID] = t; return nil }
func (r *memTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	if t, ok := r.teams[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *memTeamRepo) List(_ context.Context, _ bool) ([]domain.Team, error) { return nil, nil }

type memTechnicianRepo struct{ techs map[string]*domain.Technician }

func (r *memTechnicianRepo) Create(_ context.Context, t *domain.Technician) error {
	r.techs[t.ID] = t
	return nil
}
func (r *memTechnicianRepo) Update(_ context.Context, t *domain.Technician) error {
	r.techs[t.ID] = t
	return nil
}
func (r *memTechnicianRepo) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	if t, ok := r.techs[id]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *memTechnicianRepo) GetByEmail(_ context.Context, _ string) (*domain.Technician, error) {
	return nil, pgx.ErrNoRows
}
func (r *memTechnicianRepo) List(_ context.Context, _ repository.TechnicianFilter) ([]domain.Technician, error) {
	return nil, nil
}
func (r *memTechnicianRepo) ListAvailableByTeam(_ context.Context, teamID string) ([]domain.Technician, error) {
	var out []domain.Technician
	for _, t := range r.techs {
		if t.Active && t.TeamID != nil && *t.TeamID == teamID {
			out = append(out, *t)
		}
	}
	return out, nil
}

type memHistoryRepo struct{ entries []domain.StatusChange }

func (r *memHistoryRepo) Create(_ context.Context, change *domain.StatusChange) error {
	change.ID = fmt.Sprintf("hist-%d", len(r.entries)+1)
	change.ChangedAt = time.Now()
	r.entries = append(r.entries, *change)
	return nil
}
func (r *memHistoryRepo) ListByWorkOrder(_ context.Context, workOrderID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	for _, e := range r.entries {
		if e.WorkOrderID == workOrderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memCommentRepo struct{ comments []domain.Comment }

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	comment.ID = fmt.Sprintf("comment-%d", len(r.comments)+1)
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}
func (r *memCommentRepo) ListByWorkOrder(_ context.Context, workOrderID string, includeInternal bool) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.comments {
		if c.WorkOrderID != workOrderID {
			continue
		}
		if !includeInternal && c.CommentType == domain.CommentTypeInternalNote {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type memAttachmentRepo struct{ attachments []domain.AttachmentReference }

func (r *memAttachmentRepo) Create(_ context.Context, att *domain.AttachmentReference) error {
	att.ID = fmt.Sprintf("att-%d", len(r.attachments)+1)
	r.attachments = append(r.attachments, *att)
	return nil
}
func (r *memAttachmentRepo) ListByComment(_ context.Context, commentID string) ([]domain.AttachmentReference, error) {
	var out []domain.AttachmentReference
	for _, a := range r.attachments {
		if a.CommentID == commentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type capturingDispatcher struct{ published []events.Event }

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}
func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) typesSeen() []events.EventType {
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc        *WorkOrderService
	repo       *memWorkOrderRepo
	history    *memHistoryRepo
	dispatcher *capturingDispatcher
	clock      *fakeClock
	teamID     string
	techID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	repo := newMemWorkOrderRepo(clock)
	history := &memHistoryRepo{}
	dispatcher := &capturingDispatcher{}

	teamID := "team-1"
	assets := &memAssetRepo{assets: map[string]*domain.Asset{
		"asset-1": {ID: "asset-1", Name: "Chiller 4", IsActive: true},
		"asset-2": {ID: "asset-2", Name: "Retired Pump", IsActive: false},
	}}
	teams := &memTeamRepo{teams: map[string]*domain.Team{
		teamID: {ID: teamID, Name: "HVAC", IsActive: true},
	}}
	techs := &memTechnicianRepo{techs: map[string]*domain.Technician{
		"tech-1": {ID: "tech-1", Name: "Dana", Role: domain.StaffRoleTechnician, TeamID: &teamID, Active: true},
		"tech-2": {ID: "tech-2", Name: "Gone", Role: domain.StaffRoleTechnician, Active: false},
	}}

	calendar, err := sla.NewCalendar(sla.DefaultCalendarConfig())
	require.NoError(t, err)
	calc := sla.NewCalculator(calendar)

	// Calendar-time budgets keep the deadline arithmetic in tests trivial.
	policy := sla.DefaultPolicy()
	policy.Defaults[domain.PriorityHigh] = sla.PriorityBudget{
		ResponseMinutes: 60, ResolutionMinutes: 480, BusinessHoursOnly: false,
	}

	svc := NewWorkOrderService(WorkOrderDependencies{
		WorkOrderRepo:  repo,
		CommentRepo:    &memCommentRepo{},
		AttachmentRepo: &memAttachmentRepo{},
		AssetRepo:      assets,
		TeamRepo:       teams,
		TechnicianRepo: techs,
		HistoryRepo:    history,
		Transitions:    workflow.MustNew(),
		Tracker:        sla.NewTracker(policy, calc),
		Dispatcher:     dispatcher,
		Now:            clock.Now,
	})
	return &fixture{
		svc:        svc,
		repo:       repo,
		history:    history,
		dispatcher: dispatcher,
		clock:      clock,
		teamID:     teamID,
		techID:     "tech-1",
	}
}

func (f *fixture) createHigh(t *testing.T) *domain.WorkOrder {
	t.Helper()
	wo, err := f.svc.CreateWorkOrder(context.Background(), "user-1", WorkOrderCreateInput{
		AssetID:  "asset-1",
		Title:    "Chiller down",
		Priority: domain.PriorityHigh,
	})
	require.NoError(t, err)
	return wo
}

func (f *fixture) act(t *testing.T, id string, action workflow.Action, input ActionInput) *domain.WorkOrder {
	t.Helper()
	wo, err := f.svc.PerformAction(context.Background(), userActor("user-1"), id, action, input)
	require.NoError(t, err)
	return wo
}

func TestCreateWorkOrderDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wo, err := f.svc.CreateWorkOrder(ctx, "user-1", WorkOrderCreateInput{AssetID: "asset-1", Title: "  Leak  "})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, wo.Status)
	require.Equal(t, domain.PriorityMedium, wo.Priority)
	require.Equal(t, domain.TypeBreakdown, wo.Type)
	require.Equal(t, "Leak", wo.Title)
	require.NotEmpty(t, wo.ExternalKey)
	require.Nil(t, wo.SLA)

	_, err = f.svc.CreateWorkOrder(ctx, "user-1", WorkOrderCreateInput{AssetID: "asset-2", Title: "x"})
	require.Error(t, err)

	_, err = f.svc.CreateWorkOrder(ctx, "user-1", WorkOrderCreateInput{AssetID: "asset-1", Title: "x", Priority: "SEVERE"})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "UNKNOWN_ENUM_VALUE", domainErr.Code)
}

func TestFullLifecycleTouchesSLAClocks(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	submitAt := f.clock.Now()

	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	require.Equal(t, domain.StatusSubmitted, wo.Status)
	require.NotNil(t, wo.SubmittedAt)
	require.NotNil(t, wo.SLA)
	require.Equal(t, submitAt.Add(60*time.Minute), wo.SLA.ResponseBy)
	require.Equal(t, submitAt.Add(480*time.Minute), wo.SLA.ResolveBy)

	// Approval half an hour later re-anchors only the resolution clock.
	f.clock.Advance(30 * time.Minute)
	approveAt := f.clock.Now()
	wo = f.act(t, wo.ID, workflow.ActionApprove, ActionInput{})
	require.Equal(t, domain.StatusApproved, wo.Status)
	require.Equal(t, submitAt.Add(60*time.Minute), wo.SLA.ResponseBy)
	require.Equal(t, approveAt.Add(480*time.Minute), wo.SLA.ResolveBy)

	assignee := f.techID
	wo = f.act(t, wo.ID, workflow.ActionAssign, ActionInput{AssigneeID: &assignee})
	require.Equal(t, domain.StatusAssigned, wo.Status)
	require.Equal(t, assignee, *wo.AssigneeID)
	require.Equal(t, f.teamID, *wo.TeamID)
	require.NotNil(t, wo.AssignedAt)

	f.clock.Advance(10 * time.Minute)
	wo = f.act(t, wo.ID, workflow.ActionStart, ActionInput{})
	require.Equal(t, domain.StatusInProgress, wo.Status)
	require.NotNil(t, wo.ActualStartAt)
	require.NotNil(t, wo.SLA.RespondedAt)
	require.Equal(t, domain.SLAOnTrack, wo.SLA.ResponseStatus)

	f.clock.Advance(30 * time.Minute)
	wo = f.act(t, wo.ID, workflow.ActionComplete, ActionInput{})
	require.Equal(t, domain.StatusCompleted, wo.Status)
	require.NotNil(t, wo.SLA.ResolvedAt)
	require.False(t, wo.SLA.ResolutionBreached)

	wo = f.act(t, wo.ID, workflow.ActionClose, ActionInput{})
	require.Equal(t, domain.StatusClosed, wo.Status)
	require.NotNil(t, wo.ClosedAt)
	require.True(t, wo.SLA.Finalized)

	history, err := f.svc.ListHistoryForUser(context.Background(), "user-1", wo.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)
	require.Equal(t, domain.StatusDraft, history[0].FromStatus)
	require.Equal(t, domain.StatusClosed, history[5].ToStatus)

	require.Contains(t, f.dispatcher.typesSeen(), events.EventWorkOrderCreated)
	require.Contains(t, f.dispatcher.typesSeen(), events.EventWorkOrderAssigned)
}

func TestInvalidTransitionListsAllowedActions(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)

	_, err := f.svc.PerformAction(context.Background(), userActor("user-1"), wo.ID, workflow.ActionApprove, ActionInput{})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	require.ElementsMatch(t,
		[]string{"ATTACH", "CANCEL", "COMMENT", "SUBMIT"},
		domainErr.Details["allowed_actions"])
}

func TestHoldResumeAccumulatesPauseMinutes(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	wo = f.act(t, wo.ID, workflow.ActionApprove, ActionInput{})
	assignee := f.techID
	wo = f.act(t, wo.ID, workflow.ActionAssign, ActionInput{AssigneeID: &assignee})
	wo = f.act(t, wo.ID, workflow.ActionStart, ActionInput{})

	wo = f.act(t, wo.ID, workflow.ActionHold, ActionInput{Reason: "waiting on vendor"})
	require.Equal(t, domain.StatusOnHold, wo.Status)
	require.True(t, wo.SLA.IsPaused)

	f.clock.Advance(45 * time.Minute)
	wo = f.act(t, wo.ID, workflow.ActionResume, ActionInput{})
	require.Equal(t, domain.StatusInProgress, wo.Status)
	require.False(t, wo.SLA.IsPaused)
	require.Equal(t, 45, wo.SLA.TotalPauseMinutes)
	require.Nil(t, wo.SLA.PauseStartAt)
}

func TestRejectDropsSLARecord(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	require.NotNil(t, wo.SLA)

	wo = f.act(t, wo.ID, workflow.ActionReject, ActionInput{Reason: "needs asset detail"})
	require.Equal(t, domain.StatusDraft, wo.Status)
	require.Nil(t, wo.SubmittedAt)
	require.Nil(t, wo.SLA)
	require.NotContains(t, f.repo.slas, wo.ID)

	// Resubmission starts a fresh record anchored at the new submit time.
	f.clock.Advance(2 * time.Hour)
	resubmitAt := f.clock.Now()
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	require.NotNil(t, wo.SLA)
	require.Equal(t, resubmitAt.Add(60*time.Minute), wo.SLA.ResponseBy)
}

func TestReopenReplacesSLAAndMarksResponded(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	wo = f.act(t, wo.ID, workflow.ActionApprove, ActionInput{})
	assignee := f.techID
	wo = f.act(t, wo.ID, workflow.ActionAssign, ActionInput{AssigneeID: &assignee})
	wo = f.act(t, wo.ID, workflow.ActionStart, ActionInput{})
	wo = f.act(t, wo.ID, workflow.ActionComplete, ActionInput{})
	firstResolvedAt := wo.SLA.ResolvedAt

	f.clock.Advance(time.Hour)
	reopenAt := f.clock.Now()
	wo = f.act(t, wo.ID, workflow.ActionReopen, ActionInput{Reason: "still leaking"})
	require.Equal(t, domain.StatusInProgress, wo.Status)
	require.Nil(t, wo.CompletedAt)
	require.NotNil(t, wo.SLA.RespondedAt)
	require.Nil(t, wo.SLA.ResolvedAt)
	require.False(t, wo.SLA.Finalized)
	require.Equal(t, reopenAt.Add(480*time.Minute), wo.SLA.ResolveBy)
	require.NotEqual(t, firstResolvedAt, wo.SLA.ResolvedAt)
}

func TestConcurrentUpdateYieldsConflict(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)

	// A competing writer bumps updated_at after the service has read the
	// record but before its guarded update, so the guard is stale.
	raced := false
	f.repo.afterGet = func(id string) {
		if raced {
			return
		}
		raced = true
		f.repo.orders[id].UpdatedAt = f.repo.orders[id].UpdatedAt.Add(time.Second)
	}

	_, err := f.svc.PerformAction(context.Background(), userActor("user-1"), wo.ID, workflow.ActionSubmit, ActionInput{})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFLICT", domainErr.Code)
	require.True(t, raced)
}

func TestAssignRejectsInactiveTechnician(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	wo = f.act(t, wo.ID, workflow.ActionApprove, ActionInput{})

	inactive := "tech-2"
	_, err := f.svc.PerformAction(context.Background(), userActor("user-1"), wo.ID, workflow.ActionAssign, ActionInput{AssigneeID: &inactive})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestUpdatePriorityKeepsCommittedDeadlines(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionSubmit, ActionInput{})
	originalResponseBy := wo.SLA.ResponseBy

	updated, err := f.svc.UpdatePriority(context.Background(), staffActor("tech-1"), wo.ID, domain.PriorityEmergency)
	require.NoError(t, err)
	require.Equal(t, domain.PriorityEmergency, updated.Priority)
	require.Equal(t, originalResponseBy, updated.SLA.ResponseBy)
	require.Contains(t, f.dispatcher.typesSeen(), events.EventWorkOrderPriorityChanged)

	_, err = f.svc.UpdatePriority(context.Background(), staffActor("tech-1"), wo.ID, "SEVERE")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "UNKNOWN_ENUM_VALUE", domainErr.Code)
}

func TestUpdatePriorityRefusedAfterLifecycleEnds(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionCancel, ActionInput{Reason: "duplicate"})
	require.Equal(t, domain.StatusCancelled, wo.Status)

	_, err := f.svc.UpdatePriority(context.Background(), staffActor("tech-1"), wo.ID, domain.PriorityLow)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFLICT", domainErr.Code)
}

func TestAddCommentEnforcesAuthorRules(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	ctx := context.Background()

	// Requester: public only, own order only.
	comment, err := f.svc.AddComment(ctx, userActor("user-1"), nil, wo.ID, domain.CommentTypePublic, "any update?", nil)
	require.NoError(t, err)
	require.Equal(t, domain.AuthorTypeUser, comment.AuthorType)

	_, err = f.svc.AddComment(ctx, userActor("user-1"), nil, wo.ID, domain.CommentTypeInternalNote, "sneaky", nil)
	require.Error(t, err)

	_, err = f.svc.AddComment(ctx, userActor("user-2"), nil, wo.ID, domain.CommentTypePublic, "not mine", nil)
	require.Error(t, err)

	// Staff with access may post internal notes; requesters never see them.
	supervisor := &domain.Technician{ID: "sup-1", Role: domain.StaffRoleSupervisor, Active: true}
	note, err := f.svc.AddComment(ctx, staffActor("sup-1"), supervisor, wo.ID, domain.CommentTypeInternalNote, "vendor called", nil)
	require.NoError(t, err)
	require.Equal(t, domain.AuthorTypeStaff, note.AuthorType)

	_, visible, err := f.svc.GetWorkOrderForUser(ctx, "user-1", wo.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	_, all, err := f.svc.GetWorkOrderForStaff(ctx, supervisor, wo.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestCommentsAllowedInTerminalStatusButActionsAreNot(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)
	wo = f.act(t, wo.ID, workflow.ActionCancel, ActionInput{})

	_, err := f.svc.AddComment(context.Background(), userActor("user-1"), nil, wo.ID, domain.CommentTypePublic, "why cancelled?", nil)
	require.NoError(t, err)

	_, err = f.svc.PerformAction(context.Background(), userActor("user-1"), wo.ID, workflow.ActionSubmit, ActionInput{})
	require.Error(t, err)

	allowed, err := f.svc.AllowedActions(context.Background(), wo.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ATTACH", "COMMENT"}, allowed)
}

func TestStaffScopeFiltersByTeamOrAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.createHigh(t)
	mine = f.act(t, mine.ID, workflow.ActionSubmit, ActionInput{})
	mine = f.act(t, mine.ID, workflow.ActionApprove, ActionInput{})
	assignee := f.techID
	f.act(t, mine.ID, workflow.ActionAssign, ActionInput{AssigneeID: &assignee})
	f.createHigh(t) // unassigned, no team

	teamTech := &domain.Technician{ID: f.techID, Role: domain.StaffRoleTechnician, TeamID: &f.teamID, Active: true}
	scoped, err := f.svc.ListStaffWorkOrders(ctx, teamTech, WorkOrderStaffFilter{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)

	manager := &domain.Technician{ID: "mgr-1", Role: domain.StaffRoleManager, Active: true}
	all, err := f.svc.ListStaffWorkOrders(ctx, manager, WorkOrderStaffFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestPerformActionRejectsCommentAction(t *testing.T) {
	f := newFixture(t)
	wo := f.createHigh(t)

	_, err := f.svc.PerformAction(context.Background(), userActor("user-1"), wo.ID, workflow.ActionComment, ActionInput{})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
