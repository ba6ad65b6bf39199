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

// Actions a requester may trigger on their own work orders. Everything else
// belongs to staff.
var userActions = map[workflow.Action]struct{}{
	workflow.ActionSubmit: {},
	workflow.ActionCancel: {},
	workflow.ActionClose:  {},
	workflow.ActionReopen: {},
}

// WorkOrdersHandler serves requester-facing work order endpoints.
type WorkOrdersHandler struct {
	workOrderService *service.WorkOrderService
}

// NewWorkOrdersHandler constructs the handler.
func NewWorkOrdersHandler(workOrderService *service.WorkOrderService) *WorkOrdersHandler {
	return &WorkOrdersHandler{workOrderService: workOrderService}
}

// Create opens a new draft work order.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateWorkOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.AssetID == "" || req.Title == "" {
		return apperrors.NewValidationError("asset_id and title are required", nil)
	}

	wo, err := h.workOrderService.CreateWorkOrder(c.UserContext(), principal.User.ID, service.WorkOrderCreateInput{
		AssetID:     req.AssetID,
		TeamID:      req.TeamID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(workOrderSummary(wo))
}

// List returns the caller's work orders.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := service.WorkOrderUserFilter{
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
		Limit:       parseInt(c.Query("limit"), 50),
		Offset:      parseInt(c.Query("offset"), 0),
	}
	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.WorkOrderStatus(s))
	}
	for _, p := range splitCSV(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.WorkOrderPriority(p))
	}

	orders, err := h.workOrderService.ListUserWorkOrders(c.UserContext(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"work_orders": workOrderSummaries(orders)})
}

// Get returns one of the caller's work orders with its thread and audit trail.
func (h *WorkOrdersHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	workOrderID := c.Params("id")
	wo, comments, err := h.workOrderService.GetWorkOrderForUser(c.UserContext(), principal.User.ID, workOrderID)
	if err != nil {
		return err
	}

	history, err := h.workOrderService.ListHistoryForUser(c.UserContext(), principal.User.ID, workOrderID)
	if err != nil {
		return err
	}
	allowed, err := h.workOrderService.AllowedActions(c.UserContext(), workOrderID)
	if err != nil {
		return err
	}
	return c.JSON(workOrderDetail(wo, allowed, comments, history))
}

// PerformAction runs a lifecycle action on the caller's own work order.
func (h *WorkOrdersHandler) PerformAction(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	action, ok := workflow.ParseAction(req.Action)
	if !ok {
		return apperrors.NewUnknownEnumValue("unknown action " + req.Action)
	}
	if _, permitted := userActions[action]; !permitted {
		return apperrors.NewForbidden("action not available to requesters")
	}

	workOrderID := c.Params("id")
	// Ownership check; the lifecycle service itself is role-agnostic.
	if _, _, err := h.workOrderService.GetWorkOrderForUser(c.UserContext(), principal.User.ID, workOrderID); err != nil {
		return err
	}

	actor := events.Actor{Type: domain.SubjectTypeUser, UserID: &principal.User.ID}
	wo, err := h.workOrderService.PerformAction(c.UserContext(), actor, workOrderID, action, service.ActionInput{
		Reason: req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(workOrderSummary(wo))
}

// AddComment posts a public comment on the caller's work order.
func (h *WorkOrdersHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Body == "" {
		return apperrors.NewValidationError("body is required", nil)
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

	actor := events.Actor{Type: domain.SubjectTypeUser, UserID: &principal.User.ID}
	comment, err := h.workOrderService.AddComment(c.UserContext(), actor, nil, c.Params("id"), domain.CommentTypePublic, req.Body, attachments)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(commentResponse(comment))
}
