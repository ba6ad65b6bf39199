package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/sla"
	"github.com/spec-kit/workorder-service/internal/workflow"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// WorkOrderService coordinates the work order lifecycle. Every status change
// funnels through PerformAction so the transition table, the audit trail and
// the SLA clocks stay consistent with each other.
type WorkOrderService struct {
	workOrders  repository.WorkOrderRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	assets      repository.AssetRepository
	teams       repository.TeamRepository
	technicians repository.TechnicianRepository
	history     repository.StatusHistoryRepository
	transitions *workflow.Table
	tracker     *sla.Tracker
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// WorkOrderDependencies bundles collaborators for the work order service.
type WorkOrderDependencies struct {
	WorkOrderRepo  repository.WorkOrderRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	AssetRepo      repository.AssetRepository
	TeamRepo       repository.TeamRepository
	TechnicianRepo repository.TechnicianRepository
	HistoryRepo    repository.StatusHistoryRepository
	Transitions    *workflow.Table
	Tracker        *sla.Tracker
	Dispatcher     events.Dispatcher
	Now            func() time.Time
}

// WorkOrderCreateInput describes work order creation payload.
type WorkOrderCreateInput struct {
	AssetID     string
	TeamID      *string
	Title       string
	Description string
	Priority    domain.WorkOrderPriority
	Type        domain.WorkOrderType
}

// ActionInput carries the optional parameters of a lifecycle action.
type ActionInput struct {
	AssigneeID *string
	TeamID     *string
	Reason     string
}

// WorkOrderUserFilter describes requester listing filters.
type WorkOrderUserFilter struct {
	Statuses    []domain.WorkOrderStatus
	Priorities  []domain.WorkOrderPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// WorkOrderStaffFilter describes staff listing filters.
type WorkOrderStaffFilter struct {
	AssetID     *string
	TeamID      *string
	AssigneeID  *string
	Statuses    []domain.WorkOrderStatus
	Priorities  []domain.WorkOrderPriority
	Types       []domain.WorkOrderType
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Limit       int
	Offset      int
}

// CommentAttachmentInput defines attachment metadata.
type CommentAttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(deps WorkOrderDependencies) *WorkOrderService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &WorkOrderService{
		workOrders:  deps.WorkOrderRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		assets:      deps.AssetRepo,
		teams:       deps.TeamRepo,
		technicians: deps.TechnicianRepo,
		history:     deps.HistoryRepo,
		transitions: deps.Transitions,
		tracker:     deps.Tracker,
		dispatcher:  deps.Dispatcher,
		now:         now,
	}
}

// CreateWorkOrder creates a draft work order for a requester.
func (s *WorkOrderService) CreateWorkOrder(ctx context.Context, userID string, input WorkOrderCreateInput) (*domain.WorkOrder, error) {
	asset, err := s.assets.GetByID(ctx, input.AssetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive {
		return nil, apperrors.NewValidationError("asset is inactive", map[string]any{"asset_id": asset.ID})
	}
	if input.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *input.TeamID)
		if err != nil {
			return nil, err
		}
		if !team.IsActive {
			return nil, apperrors.NewValidationError("team is inactive", map[string]any{"team_id": team.ID})
		}
	}

	wo := &domain.WorkOrder{
		ExternalKey: generateWorkOrderKey(),
		RequesterID: userID,
		AssetID:     input.AssetID,
		TeamID:      input.TeamID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.StatusDraft,
		Priority:    input.Priority,
		Type:        input.Type,
	}
	if wo.Title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if wo.Priority == "" {
		wo.Priority = domain.PriorityMedium
	}
	if wo.Type == "" {
		wo.Type = domain.TypeBreakdown
	}
	if wo.Priority.Rank() < 0 {
		return nil, apperrors.NewUnknownEnumValue("unknown priority " + string(wo.Priority))
	}

	if err := s.workOrders.Create(ctx, wo); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderCreated,
		WorkOrderID: wo.ID,
		Actor:       userActor(userID),
		Payload: events.WorkOrderCreatedPayload{
			AssetID:  wo.AssetID,
			TeamID:   wo.TeamID,
			Priority: wo.Priority,
			Type:     wo.Type,
			Title:    wo.Title,
		},
	})
	return wo, nil
}

// PerformAction applies a lifecycle action to a work order. The transition
// table decides whether the action is legal; this method owns the side
// effects: lifecycle timestamps, assignment fields, SLA clock hooks, the
// audit trail entry and the emitted event.
func (s *WorkOrderService) PerformAction(ctx context.Context, actor events.Actor, workOrderID string, action workflow.Action, input ActionInput) (*domain.WorkOrder, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	if err := s.transitions.Validate(action, wo.Status); err != nil {
		return nil, mapWorkflowError(err)
	}
	next, err := s.transitions.NextStatus(action, wo.Status)
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	now := s.now()
	oldStatus := wo.Status
	expectedUpdatedAt := wo.UpdatedAt
	deleteSLA := false

	switch action {
	case workflow.ActionSubmit:
		wo.SubmittedAt = &now
		rec, err := s.tracker.Initialize(wo, now)
		if err != nil {
			return nil, mapSLAError(err)
		}
		wo.SLA = s.tracker.UpdateStatus(rec, now)

	case workflow.ActionApprove:
		wo.ApprovedAt = &now
		if wo.SLA != nil {
			rec := s.tracker.StartResolutionClock(wo.SLA, now)
			wo.SLA = s.tracker.UpdateStatus(rec, now)
		}

	case workflow.ActionReject:
		// Back to draft; the lifecycle restarts so the SLA record is dropped
		// and re-created on the next submission.
		wo.SubmittedAt = nil
		wo.SLA = nil
		deleteSLA = true

	case workflow.ActionAssign, workflow.ActionReassign:
		if err := s.applyAssignment(ctx, wo, input); err != nil {
			return nil, err
		}
		if action == workflow.ActionAssign {
			wo.AssignedAt = &now
		}

	case workflow.ActionStart:
		wo.ActualStartAt = &now
		if wo.SLA != nil {
			wo.SLA = s.tracker.MarkResponded(wo.SLA, now)
		}

	case workflow.ActionHold, workflow.ActionRequestParts:
		if wo.SLA != nil {
			wo.SLA = s.tracker.Pause(wo.SLA, now)
		}

	case workflow.ActionResume, workflow.ActionReceiveParts:
		if wo.SLA != nil {
			wo.SLA = s.tracker.Resume(wo.SLA, now)
		}

	case workflow.ActionComplete:
		wo.CompletedAt = &now
		if wo.SLA != nil {
			wo.SLA = s.tracker.MarkResolved(wo.SLA, now)
		}

	case workflow.ActionClose:
		wo.ClosedAt = &now
		if wo.SLA != nil {
			wo.SLA = s.tracker.Finalize(wo.SLA, now)
		}

	case workflow.ActionReopen:
		wo.CompletedAt = nil
		wo.ClosedAt = nil
		rec, err := s.tracker.Initialize(wo, now)
		if err != nil {
			return nil, mapSLAError(err)
		}
		rec = s.tracker.MarkResponded(rec, now)
		wo.SLA = s.tracker.UpdateStatus(rec, now)

	case workflow.ActionCancel:
		if wo.SLA != nil {
			wo.SLA = s.tracker.Finalize(wo.SLA, now)
		}

	case workflow.ActionComment, workflow.ActionAttach:
		return nil, apperrors.NewValidationError("use the comment endpoint for comments and attachments", nil)
	}

	wo.Status = next
	if err := s.workOrders.Update(ctx, wo, expectedUpdatedAt); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("work order was modified concurrently", nil)
		}
		return nil, err
	}
	if deleteSLA {
		if err := s.workOrders.DeleteSLA(ctx, wo.ID); err != nil {
			return nil, err
		}
	} else if wo.SLA != nil {
		if err := s.workOrders.SaveSLA(ctx, wo.ID, wo.SLA); err != nil {
			return nil, err
		}
	}

	if err := s.recordStatusChange(ctx, actor, wo.ID, oldStatus, next, action, input.Reason); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderStatusChanged,
		WorkOrderID: wo.ID,
		Actor:       actor,
		Payload: events.StatusChangedPayload{
			Action:    string(action),
			OldStatus: oldStatus,
			NewStatus: next,
			Reason:    input.Reason,
		},
	})
	if action == workflow.ActionAssign || action == workflow.ActionReassign {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventWorkOrderAssigned,
			WorkOrderID: wo.ID,
			Actor:       actor,
			Payload: events.AssignedPayload{
				AssigneeID: wo.AssigneeID,
				TeamID:     wo.TeamID,
			},
		})
	}
	return wo, nil
}

func (s *WorkOrderService) applyAssignment(ctx context.Context, wo *domain.WorkOrder, input ActionInput) error {
	if input.AssigneeID == nil && input.TeamID == nil {
		return apperrors.NewValidationError("assignee_id or team_id is required", nil)
	}
	if input.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *input.TeamID)
		if err != nil {
			return err
		}
		if !team.IsActive {
			return apperrors.NewValidationError("team is inactive", map[string]any{"team_id": team.ID})
		}
		wo.TeamID = input.TeamID
	}
	if input.AssigneeID != nil {
		tech, err := s.technicians.GetByID(ctx, *input.AssigneeID)
		if err != nil {
			return err
		}
		if !tech.Active {
			return apperrors.NewValidationError("technician is inactive", map[string]any{"technician_id": tech.ID})
		}
		if wo.TeamID == nil && tech.TeamID != nil {
			wo.TeamID = tech.TeamID
		}
		wo.AssigneeID = input.AssigneeID
	}
	return nil
}

// UpdatePriority changes the priority of a work order. Deadlines already
// committed by the SLA record are not recomputed; the new priority only
// affects future lifecycles.
func (s *WorkOrderService) UpdatePriority(ctx context.Context, actor events.Actor, workOrderID string, newPriority domain.WorkOrderPriority) (*domain.WorkOrder, error) {
	if newPriority.Rank() < 0 {
		return nil, apperrors.NewUnknownEnumValue("unknown priority " + string(newPriority))
	}
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if !wo.Active() {
		return nil, apperrors.NewConflict("work order lifecycle has ended", nil)
	}
	oldPriority := wo.Priority
	if oldPriority == newPriority {
		return wo, nil
	}
	expectedUpdatedAt := wo.UpdatedAt
	wo.Priority = newPriority
	if err := s.workOrders.Update(ctx, wo, expectedUpdatedAt); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("work order was modified concurrently", nil)
		}
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderPriorityChanged,
		WorkOrderID: wo.ID,
		Actor:       actor,
		Payload: events.PriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return wo, nil
}

// ListUserWorkOrders returns paginated work orders for a requester.
func (s *WorkOrderService) ListUserWorkOrders(ctx context.Context, userID string, filter WorkOrderUserFilter) ([]domain.WorkOrder, error) {
	repoFilter := repository.WorkOrderFilter{
		RequesterID: &userID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	return s.workOrders.ListWithFilter(ctx, repoFilter)
}

// GetWorkOrderForUser fetches a work order ensuring ownership.
func (s *WorkOrderService) GetWorkOrderForUser(ctx context.Context, userID, workOrderID string) (*domain.WorkOrder, []domain.Comment, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, nil, err
	}
	if wo.RequesterID != userID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.commentsWithAttachments(ctx, wo.ID, false)
	if err != nil {
		return nil, nil, err
	}
	return wo, comments, nil
}

// ListStaffWorkOrders returns work orders accessible to staff.
func (s *WorkOrderService) ListStaffWorkOrders(ctx context.Context, tech *domain.Technician, filter WorkOrderStaffFilter) ([]domain.WorkOrder, error) {
	repoFilter := repository.WorkOrderFilter{
		AssetID:     filter.AssetID,
		TeamID:      filter.TeamID,
		AssigneeID:  filter.AssigneeID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Types:       filter.Types,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		UpdatedFrom: filter.UpdatedFrom,
		UpdatedTo:   filter.UpdatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	s.applyStaffScope(&repoFilter, tech)
	return s.workOrders.ListWithFilter(ctx, repoFilter)
}

// GetWorkOrderForStaff fetches a work order ensuring staff access.
func (s *WorkOrderService) GetWorkOrderForStaff(ctx context.Context, tech *domain.Technician, workOrderID string) (*domain.WorkOrder, []domain.Comment, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, nil, err
	}
	if !s.staffCanAccess(tech, wo) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.commentsWithAttachments(ctx, wo.ID, true)
	if err != nil {
		return nil, nil, err
	}
	return wo, comments, nil
}

// AddComment appends a comment to a work order thread.
func (s *WorkOrderService) AddComment(ctx context.Context, actor events.Actor, tech *domain.Technician, workOrderID string, commentType domain.CommentType, body string, attachments []CommentAttachmentInput) (*domain.Comment, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if !s.transitions.CanPerform(workflow.ActionComment, wo.Status) {
		return nil, apperrors.NewInvalidTransition("comments are not allowed in this status", actionNames(s.transitions.AllowedActions(wo.Status)))
	}

	comment := &domain.Comment{
		WorkOrderID: wo.ID,
		CommentType: commentType,
		Body:        strings.TrimSpace(body),
	}
	switch actor.Type {
	case domain.SubjectTypeUser:
		if actor.UserID == nil || wo.RequesterID != *actor.UserID {
			return nil, apperrors.NewForbidden("access denied")
		}
		if commentType != domain.CommentTypePublic {
			return nil, apperrors.NewValidationError("requesters can only post public comments", nil)
		}
		comment.AuthorType = domain.AuthorTypeUser
		comment.AuthorID = actor.UserID
	case domain.SubjectTypeStaff:
		if tech == nil || !s.staffCanAccess(tech, wo) {
			return nil, apperrors.NewForbidden("access denied")
		}
		if commentType != domain.CommentTypePublic && commentType != domain.CommentTypeInternalNote {
			return nil, apperrors.NewValidationError("invalid comment type for staff", nil)
		}
		comment.AuthorType = domain.AuthorTypeStaff
		comment.AuthorID = actor.StaffID
	default:
		comment.AuthorType = domain.AuthorTypeSystem
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	for _, att := range attachments {
		record := &domain.AttachmentReference{
			CommentID:  comment.ID,
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, err
		}
		comment.Attachments = append(comment.Attachments, *record)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderCommentAdded,
		WorkOrderID: wo.ID,
		Actor:       actor,
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			CommentType: comment.CommentType,
			AuthorType:  comment.AuthorType,
			AuthorID:    comment.AuthorID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListHistoryForStaff returns the transition audit trail for staff.
func (s *WorkOrderService) ListHistoryForStaff(ctx context.Context, tech *domain.Technician, workOrderID string) ([]domain.StatusChange, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if !s.staffCanAccess(tech, wo) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.history.ListByWorkOrder(ctx, workOrderID)
}

// ListHistoryForUser returns the audit trail to the requester.
func (s *WorkOrderService) ListHistoryForUser(ctx context.Context, userID, workOrderID string) ([]domain.StatusChange, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if wo.RequesterID != userID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.history.ListByWorkOrder(ctx, workOrderID)
}

// AllowedActions lists the actions currently legal for a work order.
func (s *WorkOrderService) AllowedActions(ctx context.Context, workOrderID string) ([]string, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	return actionNames(s.transitions.AllowedActions(wo.Status)), nil
}

func (s *WorkOrderService) applyStaffScope(filter *repository.WorkOrderFilter, tech *domain.Technician) {
	if tech == nil {
		return
	}
	switch tech.Role {
	case domain.StaffRoleAdmin, domain.StaffRoleManager:
		return
	}
	if tech.TeamID != nil {
		filter.TeamID = tech.TeamID
	} else {
		techID := tech.ID
		filter.AssigneeID = &techID
	}
}

func (s *WorkOrderService) staffCanAccess(tech *domain.Technician, wo *domain.WorkOrder) bool {
	if tech == nil {
		return false
	}
	switch tech.Role {
	case domain.StaffRoleAdmin, domain.StaffRoleManager, domain.StaffRoleSupervisor:
		return true
	}
	if wo.AssigneeID != nil && *wo.AssigneeID == tech.ID {
		return true
	}
	if tech.TeamID != nil && wo.TeamID != nil && *tech.TeamID == *wo.TeamID {
		return true
	}
	return false
}

func (s *WorkOrderService) commentsWithAttachments(ctx context.Context, workOrderID string, includeInternal bool) ([]domain.Comment, error) {
	comments, err := s.comments.ListByWorkOrder(ctx, workOrderID, includeInternal)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		attachments, err := s.attachments.ListByComment(ctx, comments[i].ID)
		if err != nil {
			return nil, err
		}
		comments[i].Attachments = attachments
	}
	return comments, nil
}

func (s *WorkOrderService) recordStatusChange(ctx context.Context, actor events.Actor, workOrderID string, from, to domain.WorkOrderStatus, action workflow.Action, reason string) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.StatusChange{
		WorkOrderID:   workOrderID,
		FromStatus:    from,
		ToStatus:      to,
		Action:        string(action),
		ChangedBy:     actorID(actor),
		ChangedByType: authorTypeFor(actor),
		Reason:        reason,
	}
	return s.history.Create(ctx, entry)
}

func (s *WorkOrderService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapWorkflowError(err error) error {
	var invalid *workflow.InvalidTransitionError
	if errors.As(err, &invalid) {
		return apperrors.NewInvalidTransition(invalid.Error(), actionNames(invalid.Allowed))
	}
	var unknown *workflow.UnknownStatusError
	if errors.As(err, &unknown) {
		return apperrors.NewUnknownEnumValue(unknown.Error())
	}
	return err
}

func mapSLAError(err error) error {
	var unknown *sla.UnknownEnumValueError
	if errors.As(err, &unknown) {
		return apperrors.NewUnknownEnumValue(unknown.Error())
	}
	return err
}

func actionNames(actions []workflow.Action) []string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return names
}

func actorID(actor events.Actor) string {
	switch {
	case actor.UserID != nil:
		return *actor.UserID
	case actor.StaffID != nil:
		return *actor.StaffID
	default:
		return "system"
	}
}

func authorTypeFor(actor events.Actor) domain.MessageAuthorType {
	switch actor.Type {
	case domain.SubjectTypeUser:
		return domain.AuthorTypeUser
	case domain.SubjectTypeStaff:
		return domain.AuthorTypeStaff
	default:
		return domain.AuthorTypeSystem
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   domain.SubjectTypeUser,
		UserID: &userID,
	}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    domain.SubjectTypeStaff,
		StaffID: &staffID,
	}
}

func generateWorkOrderKey() string {
	return "WO-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
