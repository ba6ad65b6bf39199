package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
)

func slaResponse(record *domain.SLARecord) *dto.SLAResponse {
	if record == nil {
		return nil
	}
	return &dto.SLAResponse{
		ResponseBy:         record.ResponseBy,
		ResolveBy:          record.ResolveBy,
		ResponseStatus:     record.ResponseStatus,
		ResolutionStatus:   record.ResolutionStatus,
		ResponseBreached:   record.ResponseBreached,
		ResolutionBreached: record.ResolutionBreached,
		BreachMinutes:      record.BreachMinutes,
		BusinessHoursOnly:  record.BusinessHoursOnly,
		IsPaused:           record.IsPaused,
		TotalPauseMinutes:  record.TotalPauseMinutes,
		RespondedAt:        record.RespondedAt,
		ResolvedAt:         record.ResolvedAt,
		EscalationLevel:    record.EscalationLevel,
		EscalatedAt:        record.EscalatedAt,
		EscalatedTo:        record.EscalatedTo,
		Finalized:          record.Finalized,
	}
}

func workOrderSummary(wo *domain.WorkOrder) dto.WorkOrderSummary {
	return dto.WorkOrderSummary{
		ID:          wo.ID,
		ExternalKey: wo.ExternalKey,
		AssetID:     wo.AssetID,
		TeamID:      wo.TeamID,
		AssigneeID:  wo.AssigneeID,
		Title:       wo.Title,
		Status:      wo.Status,
		Priority:    wo.Priority,
		Type:        wo.Type,
		SLA:         slaResponse(wo.SLA),
		CreatedAt:   wo.CreatedAt,
		UpdatedAt:   wo.UpdatedAt,
	}
}

func workOrderSummaries(orders []domain.WorkOrder) []dto.WorkOrderSummary {
	out := make([]dto.WorkOrderSummary, 0, len(orders))
	for i := range orders {
		out = append(out, workOrderSummary(&orders[i]))
	}
	return out
}

func workOrderDetail(wo *domain.WorkOrder, allowed []string, comments []domain.Comment, history []domain.StatusChange) dto.WorkOrderDetailResponse {
	return dto.WorkOrderDetailResponse{
		ID:             wo.ID,
		ExternalKey:    wo.ExternalKey,
		AssetID:        wo.AssetID,
		TeamID:         wo.TeamID,
		AssigneeID:     wo.AssigneeID,
		Title:          wo.Title,
		Description:    wo.Description,
		Status:         wo.Status,
		Priority:       wo.Priority,
		Type:           wo.Type,
		SLA:            slaResponse(wo.SLA),
		AllowedActions: allowed,
		CreatedAt:      wo.CreatedAt,
		UpdatedAt:      wo.UpdatedAt,
		SubmittedAt:    wo.SubmittedAt,
		ApprovedAt:     wo.ApprovedAt,
		AssignedAt:     wo.AssignedAt,
		ActualStartAt:  wo.ActualStartAt,
		CompletedAt:    wo.CompletedAt,
		ClosedAt:       wo.ClosedAt,
		Comments:       commentResponses(comments),
		History:        historyResponses(history),
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(comment.Attachments))
	for _, a := range comment.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:        a.ID,
			FileName:  a.FileName,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return dto.CommentResponse{
		ID:          comment.ID,
		CommentType: comment.CommentType,
		AuthorType:  comment.AuthorType,
		AuthorID:    comment.AuthorID,
		Body:        comment.Body,
		Attachments: attachments,
		CreatedAt:   comment.CreatedAt,
	}
}

func commentResponses(comments []domain.Comment) []dto.CommentResponse {
	out := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, commentResponse(&comments[i]))
	}
	return out
}

func historyResponses(changes []domain.StatusChange) []dto.StatusChangeResponse {
	out := make([]dto.StatusChangeResponse, 0, len(changes))
	for _, change := range changes {
		out = append(out, dto.StatusChangeResponse{
			ID:            change.ID,
			FromStatus:    change.FromStatus,
			ToStatus:      change.ToStatus,
			Action:        change.Action,
			ChangedBy:     change.ChangedBy,
			ChangedByType: change.ChangedByType,
			Reason:        change.Reason,
			ChangedAt:     change.ChangedAt,
		})
	}
	return out
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	value := c.Query(key)
	if value == "" {
		return nil
	}
	return &value
}
