package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/workflow"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// AssignmentService handles the assignment flavors on top of the lifecycle:
// self-assign, explicit assignment and least-loaded auto-assignment. The
// actual state change always goes through WorkOrderService.PerformAction.
type AssignmentService struct {
	workOrderSvc *WorkOrderService
	workOrders   repository.WorkOrderRepository
	technicians  repository.TechnicianRepository
	teams        repository.TeamRepository
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	WorkOrderService *WorkOrderService
	WorkOrderRepo    repository.WorkOrderRepository
	TechnicianRepo   repository.TechnicianRepository
	TeamRepo         repository.TeamRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		workOrderSvc: deps.WorkOrderService,
		workOrders:   deps.WorkOrderRepo,
		technicians:  deps.TechnicianRepo,
		teams:        deps.TeamRepo,
	}
}

// SelfAssign lets a technician take an approved or already assigned work order.
func (s *AssignmentService) SelfAssign(ctx context.Context, tech *domain.Technician, workOrderID string) (*domain.WorkOrder, error) {
	if tech == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	action, err := s.assignAction(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	techID := tech.ID
	return s.workOrderSvc.PerformAction(ctx, staffActor(tech.ID), workOrderID, action, ActionInput{
		AssigneeID: &techID,
		Reason:     "self_assigned",
	})
}

// AssignToTechnician assigns a work order to the given technician.
// Requires supervisor or above.
func (s *AssignmentService) AssignToTechnician(ctx context.Context, actor *domain.Technician, workOrderID, assigneeID string) (*domain.WorkOrder, error) {
	if err := requireAssignPriv(actor); err != nil {
		return nil, err
	}
	action, err := s.assignAction(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	return s.workOrderSvc.PerformAction(ctx, staffActor(actor.ID), workOrderID, action, ActionInput{
		AssigneeID: &assigneeID,
	})
}

// AssignToTeam routes a work order to a team without picking a technician.
func (s *AssignmentService) AssignToTeam(ctx context.Context, actor *domain.Technician, workOrderID, teamID string) (*domain.WorkOrder, error) {
	if err := requireAssignPriv(actor); err != nil {
		return nil, err
	}
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
		}
		return nil, err
	}
	if !team.IsActive {
		return nil, apperrors.NewConflict("team inactive", map[string]any{"team_id": teamID})
	}
	techs, err := s.technicians.ListAvailableByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(techs) == 0 {
		return nil, apperrors.NewConflict("team has no available technicians", map[string]any{"team_id": teamID})
	}
	action, err := s.assignAction(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	assignee := techs[0].ID
	return s.workOrderSvc.PerformAction(ctx, staffActor(actor.ID), workOrderID, action, ActionInput{
		AssigneeID: &assignee,
		TeamID:     &teamID,
		Reason:     "team_auto_assigned",
	})
}

// AutoAssign picks the least-loaded active technician on the work order's
// team and assigns them.
func (s *AssignmentService) AutoAssign(ctx context.Context, actor *domain.Technician, workOrderID string) (*domain.WorkOrder, error) {
	if err := requireAssignPriv(actor); err != nil {
		return nil, err
	}
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work order", map[string]any{"work_order_id": workOrderID})
		}
		return nil, err
	}
	if wo.TeamID == nil {
		return nil, apperrors.NewConflict("work order has no team; assign a team first", nil)
	}
	return s.AssignToTeam(ctx, actor, workOrderID, *wo.TeamID)
}

// assignAction picks ASSIGN vs REASSIGN from the current status so the
// transition table sees the right verb.
func (s *AssignmentService) assignAction(ctx context.Context, workOrderID string) (workflow.Action, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("work order", map[string]any{"work_order_id": workOrderID})
		}
		return "", err
	}
	if wo.AssigneeID != nil {
		return workflow.ActionReassign, nil
	}
	return workflow.ActionAssign, nil
}

func requireAssignPriv(actor *domain.Technician) error {
	if actor == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	switch actor.Role {
	case domain.StaffRoleSupervisor, domain.StaffRoleManager, domain.StaffRoleAdmin:
		return nil
	default:
		return apperrors.NewForbidden("insufficient role for assignment")
	}
}
