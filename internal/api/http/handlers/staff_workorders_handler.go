package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/workflow"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// StaffWorkOrdersHandler serves staff-facing work order endpoints.
type StaffWorkOrdersHandler struct {
	workOrderService  *service.WorkOrderService
	assignmentService *service.AssignmentService
	slaService        *service.SLAService
}

// NewStaffWorkOrdersHandler constructs the handler.
func NewStaffWorkOrdersHandler(workOrderService *service.WorkOrderService, assignmentService *service.AssignmentService, slaService *service.SLAService) *StaffWorkOrdersHandler {
	return &StaffWorkOrdersHandler{
		workOrderService:  workOrderService,
		assignmentService: assignmentService,
		slaService:        slaService,
	}
}

func staffPrincipal(c *fiber.Ctx) (*domain.Technician, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Technician == nil {
		return nil, apperrors.NewUnauthorized("staff authentication required")
	}
	return principal.Technician, nil
}

func staffActor(tech *domain.Technician) events.Actor {
	return events.Actor{Type: domain.SubjectTypeStaff, StaffID: &tech.ID}
}

// List returns work orders visible to the caller's role and team.
func (h *StaffWorkOrdersHandler) List(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	filter := service.WorkOrderStaffFilter{
		AssetID:     optionalQuery(c, "asset_id"),
		TeamID:      optionalQuery(c, "team_id"),
		AssigneeID:  optionalQuery(c, "assignee_id"),
		SearchTerm:  optionalQuery(c, "q"),
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
		UpdatedFrom: parseTime(c.Query("updated_from")),
		UpdatedTo:   parseTime(c.Query("updated_to")),
		Limit:       parseInt(c.Query("limit"), 50),
		Offset:      parseInt(c.Query("offset"), 0),
	}
	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.WorkOrderStatus(s))
	}
	for _, p := range splitCSV(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.WorkOrderPriority(p))
	}
	for _, t := range splitCSV(c.Query("type")) {
		filter.Types = append(filter.Types, domain.WorkOrderType(t))
	}

	orders, err := h.workOrderService.ListStaffWorkOrders(c.UserContext(), tech, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"work_orders": workOrderSummaries(orders)})
}

// Get returns a work order with internal notes and audit trail included.
func (h *StaffWorkOrdersHandler) Get(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	workOrderID := c.Params("id")
	wo, comments, err := h.workOrderService.GetWorkOrderForStaff(c.UserContext(), tech, workOrderID)
	if err != nil {
		return err
	}
	history, err := h.workOrderService.ListHistoryForStaff(c.UserContext(), tech, workOrderID)
	if err != nil {
		return err
	}
	allowed, err := h.workOrderService.AllowedActions(c.UserContext(), workOrderID)
	if err != nil {
		return err
	}
	return c.JSON(workOrderDetail(wo, allowed, comments, history))
}

// PerformAction runs a lifecycle action as staff.
func (h *StaffWorkOrdersHandler) PerformAction(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	action, ok := workflow.ParseAction(req.Action)
	if !ok {
		return apperrors.NewUnknownEnumValue("unknown action " + req.Action)
	}

	wo, err := h.workOrderService.PerformAction(c.UserContext(), staffActor(tech), c.Params("id"), action, service.ActionInput{
		AssigneeID: req.AssigneeID,
		TeamID:     req.TeamID,
		Reason:     req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}

// UpdatePriority changes the priority without touching committed deadlines.
func (h *StaffWorkOrdersHandler) UpdatePriority(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.PriorityUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	wo, err := h.workOrderService.UpdatePriority(c.UserContext(), staffActor(tech), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}

// AddComment posts a comment, public or internal.
func (h *StaffWorkOrdersHandler) AddComment(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Body == "" {
		return apperrors.NewValidationError("body is required", nil)
	}
	commentType := domain.CommentTypePublic
	if req.CommentType != nil {
		commentType = *req.CommentType
	}

	attachments := make([]service.CommentAttachmentInput, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, service.CommentAttachmentInput{
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
		})
	}

	comment, err := h.workOrderService.AddComment(c.UserContext(), staffActor(tech), tech, c.Params("id"), commentType, req.Body, attachments)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(commentResponse(comment))
}

// History returns the audit trail.
func (h *StaffWorkOrdersHandler) History(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	history, err := h.workOrderService.ListHistoryForStaff(c.UserContext(), tech, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": historyResponses(history)})
}

// SLAAttention lists open work orders whose SLA clocks are breached or at
// risk, most pressing deadline first.
func (h *StaffWorkOrdersHandler) SLAAttention(c *fiber.Ctx) error {
	if _, err := staffPrincipal(c); err != nil {
		return err
	}

	var statuses []domain.SLAStatus
	for _, s := range splitCSV(c.Query("status")) {
		switch status := domain.SLAStatus(s); status {
		case domain.SLAOnTrack, domain.SLAAtRisk, domain.SLABreached:
			statuses = append(statuses, status)
		default:
			return apperrors.NewUnknownEnumValue("unknown sla status " + s)
		}
	}

	orders, err := h.slaService.ListAttention(c.UserContext(), statuses,
		parseInt(c.Query("limit"), 50), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"work_orders": workOrderSummaries(orders)})
}

// SLAStatus recomputes and returns the current SLA state.
func (h *StaffWorkOrdersHandler) SLAStatus(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	workOrderID := c.Params("id")
	if _, _, err := h.workOrderService.GetWorkOrderForStaff(c.UserContext(), tech, workOrderID); err != nil {
		return err
	}

	wo, err := h.slaService.GetStatus(c.UserContext(), workOrderID)
	if err != nil {
		return err
	}
	if wo.SLA == nil {
		return apperrors.NewNotFound("sla record", map[string]any{"work_order_id": workOrderID})
	}
	return c.JSON(slaResponse(wo.SLA))
}

// EvaluateSLA forces a full breach and escalation evaluation for one work
// order, outside the sweep cadence.
func (h *StaffWorkOrdersHandler) EvaluateSLA(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	workOrderID := c.Params("id")
	if _, _, err := h.workOrderService.GetWorkOrderForStaff(c.UserContext(), tech, workOrderID); err != nil {
		return err
	}

	wo, err := h.slaService.EvaluateWorkOrder(c.UserContext(), workOrderID)
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}

// SelfAssign lets the caller pick up an approved work order.
func (h *StaffWorkOrdersHandler) SelfAssign(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	wo, err := h.assignmentService.SelfAssign(c.UserContext(), tech, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}

// Assign routes a work order to a technician, a team, or automatically.
func (h *StaffWorkOrdersHandler) Assign(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	var wo *domain.WorkOrder
	switch {
	case req.AssigneeID != nil:
		wo, err = h.assignmentService.AssignToTechnician(c.UserContext(), tech, c.Params("id"), *req.AssigneeID)
	case req.TeamID != nil:
		wo, err = h.assignmentService.AssignToTeam(c.UserContext(), tech, c.Params("id"), *req.TeamID)
	default:
		wo, err = h.assignmentService.AutoAssign(c.UserContext(), tech, c.Params("id"))
	}
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}
