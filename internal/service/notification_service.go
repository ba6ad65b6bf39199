package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventWorkOrderCreated, n.handleWorkOrderEvent)
	n.dispatcher.Subscribe(events.EventWorkOrderStatusChanged, n.handleWorkOrderEvent)
	n.dispatcher.Subscribe(events.EventWorkOrderAssigned, n.handleWorkOrderEvent)
	n.dispatcher.Subscribe(events.EventWorkOrderCommentAdded, n.handleWorkOrderEvent)
	n.dispatcher.Subscribe(events.EventWorkOrderPriorityChanged, n.handleWorkOrderEvent)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventSLAEscalated, n.handleSLAEvent)
	n.dispatcher.Subscribe(events.EventPriorityAutoEscalated, n.handleSLAEvent)
}

func (n *NotificationService) handleWorkOrderEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("work_order_id", event.WorkOrderID),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// SLA events go to escalation targets, not the requester, so they always use
// the webhook channel when configured.
func (n *NotificationService) handleSLAEvent(ctx context.Context, event events.Event) error {
	n.logger.Warn(string(event.Type),
		zap.String("work_order_id", event.WorkOrderID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("work_order_id", event.WorkOrderID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("work_order_id", event.WorkOrderID),
		zap.String("event_type", string(event.Type)))
}
