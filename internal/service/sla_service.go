package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/sla"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// notifyDedupTTL bounds how long warning/breach dedup keys live in redis.
// Long enough to cover any realistic lifecycle, short enough to self-clean.
const notifyDedupTTL = 14 * 24 * time.Hour

// SLAService recomputes SLA clocks on demand and in periodic sweeps, and
// turns escalation decisions into events and record updates.
type SLAService struct {
	workOrders repository.WorkOrderRepository
	tracker    *sla.Tracker
	escalator  *sla.Escalator
	redis      *persistence.Redis
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	batchSize  int
	now        func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	WorkOrderRepo repository.WorkOrderRepository
	Tracker       *sla.Tracker
	Escalator     *sla.Escalator
	Redis         *persistence.Redis
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	BatchSize     int
	Now           func() time.Time
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 500
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		workOrders: deps.WorkOrderRepo,
		tracker:    deps.Tracker,
		escalator:  deps.Escalator,
		redis:      deps.Redis,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		batchSize:  batch,
		now:        now,
	}
}

// GetStatus returns the work order with its SLA recomputed at now. The
// refreshed record is persisted so reads leave the stored state current.
func (s *SLAService) GetStatus(ctx context.Context, workOrderID string) (*domain.WorkOrder, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if wo.SLA == nil || wo.SLA.Finalized {
		return wo, nil
	}
	wo.SLA = s.tracker.UpdateStatus(wo.SLA, s.now())
	if err := s.workOrders.SaveSLA(ctx, wo.ID, wo.SLA); err != nil {
		return nil, err
	}
	return wo, nil
}

// ListAttention returns open work orders whose overall SLA state (the more
// severe of the two clock statuses) matches one of the given states, breached
// or at-risk by default. Each record is refreshed in memory at now; the sweep
// keeps the stored state current, so the listing itself does not write.
func (s *SLAService) ListAttention(ctx context.Context, statuses []domain.SLAStatus, limit, offset int) ([]domain.WorkOrder, error) {
	orders, err := s.workOrders.ListSLAAttention(ctx, statuses, limit, offset)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range orders {
		if orders[i].SLA != nil && !orders[i].SLA.Finalized {
			orders[i].SLA = s.tracker.UpdateStatus(orders[i].SLA, now)
		}
	}
	return orders, nil
}

// SweepOnce evaluates every active SLA record once: refreshes clock statuses,
// emits due warnings and breach notifications, applies escalation and
// auto-promotes priority where the policy says so. Returns the number of work
// orders examined.
func (s *SLAService) SweepOnce(ctx context.Context) (int, error) {
	start := s.now()
	active, err := s.workOrders.ListActiveWithSLA(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	var breached, escalated int
	for i := range active {
		wo := &active[i]
		b, e, err := s.evaluateOne(ctx, wo)
		if err != nil {
			s.logger.Error("sla evaluation failed",
				zap.String("work_order_id", wo.ID),
				zap.Error(err))
			continue
		}
		if b {
			breached++
		}
		if e {
			escalated++
		}
	}

	s.metrics.RecordSweep("examined", len(active))
	s.metrics.RecordSweep("breached", breached)
	s.metrics.RecordSweep("escalated", escalated)
	s.logger.Info("sla sweep complete",
		zap.Int("examined", len(active)),
		zap.Int("breached", breached),
		zap.Int("escalated", escalated),
		zap.Duration("took", time.Since(start)))
	return len(active), nil
}

// EvaluateWorkOrder refreshes one work order's SLA immediately, outside the
// periodic sweep. Used after staff actions that may change escalation state.
func (s *SLAService) EvaluateWorkOrder(ctx context.Context, workOrderID string) (*domain.WorkOrder, error) {
	wo, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if wo.SLA == nil {
		return nil, apperrors.NewNotFound("sla record", map[string]any{"work_order_id": workOrderID})
	}
	if _, _, err := s.evaluateOne(ctx, wo); err != nil {
		return nil, err
	}
	return wo, nil
}

func (s *SLAService) evaluateOne(ctx context.Context, wo *domain.WorkOrder) (breached, escalatedNow bool, err error) {
	if wo.SLA == nil || wo.SLA.Finalized {
		return false, false, nil
	}
	now := s.now()
	prev := wo.SLA

	rec := s.tracker.UpdateStatus(prev, now)
	decision := s.escalator.Evaluate(rec, wo, now)

	for _, warning := range decision.Warnings {
		if s.markOnce(ctx, fmt.Sprintf("sla:warn:%s:%s:%d", wo.ID, warning.Clock, warning.ThresholdPercent)) {
			deadline := rec.ResponseBy
			if warning.Clock == sla.ClockResolution {
				deadline = rec.ResolveBy
			}
			s.publish(ctx, events.Event{
				Type:        events.EventSLAWarning,
				WorkOrderID: wo.ID,
				Payload: events.SLAWarningPayload{
					Clock:            warning.Clock,
					ThresholdPercent: warning.ThresholdPercent,
					Deadline:         deadline,
				},
			})
		}
	}

	newResponseBreach := rec.ResponseBreached && !prev.ResponseBreached
	newResolutionBreach := rec.ResolutionBreached && !prev.ResolutionBreached
	for _, step := range decision.BreachActions {
		key := fmt.Sprintf("sla:breach:%s:%s:%d", wo.ID, step.Clock, step.DelayMinutes)
		firstTime := (step.Clock == sla.ClockResponse && newResponseBreach) ||
			(step.Clock == sla.ClockResolution && newResolutionBreach)
		if !s.markOnce(ctx, key) && !firstTime {
			continue
		}
		s.publish(ctx, events.Event{
			Type:        events.EventSLABreached,
			WorkOrderID: wo.ID,
			Payload: events.SLABreachedPayload{
				Clock:         step.Clock,
				Action:        step.Action,
				BreachMinutes: rec.BreachMinutes,
			},
		})
	}

	prevLevel := rec.EscalationLevel
	rec = s.escalator.Apply(rec, decision, now)
	if rec.EscalationLevel != prevLevel {
		escalatedNow = true
		s.publish(ctx, events.Event{
			Type:        events.EventSLAEscalated,
			WorkOrderID: wo.ID,
			Payload: events.SLAEscalatedPayload{
				Level:         rec.EscalationLevel,
				Targets:       rec.EscalatedTo,
				BreachMinutes: rec.BreachMinutes,
			},
		})
	}

	if decision.AutoEscalateTo != nil && *decision.AutoEscalateTo != wo.Priority {
		if err := s.promotePriority(ctx, wo, *decision.AutoEscalateTo); err != nil {
			return false, false, err
		}
	}

	wo.SLA = rec
	if err := s.workOrders.SaveSLA(ctx, wo.ID, rec); err != nil {
		return false, false, err
	}
	return rec.ResponseBreached || rec.ResolutionBreached, escalatedNow, nil
}

func (s *SLAService) promotePriority(ctx context.Context, wo *domain.WorkOrder, to domain.WorkOrderPriority) error {
	old := wo.Priority
	expectedUpdatedAt := wo.UpdatedAt
	wo.Priority = to
	if err := s.workOrders.Update(ctx, wo, expectedUpdatedAt); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// Someone else changed the work order mid-sweep; the next pass
			// re-evaluates from fresh state.
			wo.Priority = old
			return nil
		}
		return err
	}
	s.publish(ctx, events.Event{
		Type:        events.EventPriorityAutoEscalated,
		WorkOrderID: wo.ID,
		Payload: events.PriorityAutoEscalatedPayload{
			OldPriority: old,
			NewPriority: to,
		},
	})
	return nil
}

// markOnce reports whether this notification key is being seen for the first
// time. Without redis every sweep pass would re-send, so fail open only for
// genuinely new breaches (handled by the caller).
func (s *SLAService) markOnce(ctx context.Context, key string) bool {
	if s.redis == nil || s.redis.Client == nil {
		return true
	}
	ok, err := s.redis.MarkOnce(ctx, key, notifyDedupTTL)
	if err != nil {
		s.logger.Warn("notification dedup unavailable", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

func (s *SLAService) publish(ctx context.Context, event events.Event) {
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
