package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// ErrVersionConflict signals a lost optimistic-lock race on update.
var ErrVersionConflict = errors.New("work order was modified concurrently")

// WorkOrderFilter captures staff search parameters.
type WorkOrderFilter struct {
	RequesterID *string
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

// WorkOrderRepository encapsulates work order persistence.
type WorkOrderRepository interface {
	Create(ctx context.Context, wo *domain.WorkOrder) error
	// Update persists mutable fields guarded by the caller's last-seen
	// updated_at; a stale guard yields ErrVersionConflict.
	Update(ctx context.Context, wo *domain.WorkOrder, expectedUpdatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.WorkOrder, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WorkOrder, error)
	ListWithFilter(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error)
	SaveSLA(ctx context.Context, workOrderID string, rec *domain.SLARecord) error
	DeleteSLA(ctx context.Context, workOrderID string) error
	// ListActiveWithSLA returns open work orders whose SLA clocks still need
	// periodic evaluation, oldest deadline first.
	ListActiveWithSLA(ctx context.Context, limit int) ([]domain.WorkOrder, error)
	// ListSLAAttention returns open work orders whose overall SLA state (the
	// more severe of the two clock statuses) is one of the given states, most
	// pressing deadline first.
	ListSLAAttention(ctx context.Context, statuses []domain.SLAStatus, limit, offset int) ([]domain.WorkOrder, error)
}

type workOrderRepository struct {
	pool *pgxpool.Pool
}

// NewWorkOrderRepository instantiates repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool}
}

const workOrderColumns = `id, external_key, requester_user_id, asset_id, team_id, assignee_technician_id,
               title, description, status, priority, work_order_type,
               submitted_at, approved_at, assigned_at, actual_start_at, completed_at, closed_at,
               created_at, updated_at`

func (r *workOrderRepository) Create(ctx context.Context, wo *domain.WorkOrder) error {
	const query = `
        INSERT INTO work_orders (external_key, requester_user_id, asset_id, team_id, assignee_technician_id,
            title, description, status, priority, work_order_type)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		wo.ExternalKey,
		wo.RequesterID,
		wo.AssetID,
		wo.TeamID,
		wo.AssigneeID,
		wo.Title,
		wo.Description,
		wo.Status,
		wo.Priority,
		wo.Type,
	).Scan(&wo.ID, &wo.CreatedAt, &wo.UpdatedAt)
}

func (r *workOrderRepository) Update(ctx context.Context, wo *domain.WorkOrder, expectedUpdatedAt time.Time) error {
	const query = `
        UPDATE work_orders SET team_id=$1, assignee_technician_id=$2, title=$3, description=$4,
            status=$5, priority=$6, work_order_type=$7,
            submitted_at=$8, approved_at=$9, assigned_at=$10, actual_start_at=$11, completed_at=$12, closed_at=$13,
            updated_at=NOW()
        WHERE id=$14 AND updated_at=$15
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		wo.TeamID,
		wo.AssigneeID,
		wo.Title,
		wo.Description,
		wo.Status,
		wo.Priority,
		wo.Type,
		wo.SubmittedAt,
		wo.ApprovedAt,
		wo.AssignedAt,
		wo.ActualStartAt,
		wo.CompletedAt,
		wo.ClosedAt,
		wo.ID,
		expectedUpdatedAt,
	).Scan(&wo.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM work_orders WHERE id=$1)`, wo.ID).Scan(&exists); checkErr != nil {
		return checkErr
	}
	if exists {
		return ErrVersionConflict
	}
	return pgx.ErrNoRows
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *workOrderRepository) GetByExternalKey(ctx context.Context, key string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE external_key=$1`
	return r.fetchSingle(ctx, query, key)
}

func (r *workOrderRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.WorkOrder, error) {
	var wo domain.WorkOrder
	if err := scanWorkOrder(r.pool.QueryRow(ctx, query, arg), &wo); err != nil {
		return nil, err
	}
	if err := r.attachSLA(ctx, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *workOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WorkOrder, error) {
	filter := WorkOrderFilter{
		RequesterID: &userID,
		Limit:       limit,
		Offset:      offset,
	}
	return r.ListWithFilter(ctx, filter)
}

func (r *workOrderRepository) ListWithFilter(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	base := `SELECT ` + workOrderColumns + ` FROM work_orders`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_user_id=$%d", len(args)))
	}
	if filter.AssetID != nil {
		args = append(args, *filter.AssetID)
		clauses = append(clauses, fmt.Sprintf("asset_id=$%d", len(args)))
	}
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		clauses = append(clauses, fmt.Sprintf("team_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, wt := range filter.Types {
			args = append(args, wt)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("work_order_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.UpdatedFrom != nil {
		args = append(args, *filter.UpdatedFrom)
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", len(args)))
	}
	if filter.UpdatedTo != nil {
		args = append(args, *filter.UpdatedTo)
		clauses = append(clauses, fmt.Sprintf("updated_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkOrders(rows)
}

const slaColumns = `response_by, resolve_by, response_status, resolution_status,
               response_breached, resolution_breached, breach_minutes,
               response_minutes, resolution_minutes, grace_minutes, business_hours_only,
               started_at, resolution_start_at, responded_at, resolved_at,
               is_paused, pause_start_at, total_pause_minutes,
               escalation_level, escalated_at, escalated_to,
               response_warnings_sent, resolution_warnings_sent, finalized`

func (r *workOrderRepository) SaveSLA(ctx context.Context, workOrderID string, rec *domain.SLARecord) error {
	const query = `
        INSERT INTO work_order_slas (work_order_id, response_by, resolve_by, response_status, resolution_status,
            response_breached, resolution_breached, breach_minutes,
            response_minutes, resolution_minutes, grace_minutes, business_hours_only,
            started_at, resolution_start_at, responded_at, resolved_at,
            is_paused, pause_start_at, total_pause_minutes,
            escalation_level, escalated_at, escalated_to,
            response_warnings_sent, resolution_warnings_sent, finalized)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
        ON CONFLICT (work_order_id) DO UPDATE SET
            response_by=EXCLUDED.response_by,
            resolve_by=EXCLUDED.resolve_by,
            response_status=EXCLUDED.response_status,
            resolution_status=EXCLUDED.resolution_status,
            response_breached=EXCLUDED.response_breached,
            resolution_breached=EXCLUDED.resolution_breached,
            breach_minutes=EXCLUDED.breach_minutes,
            response_minutes=EXCLUDED.response_minutes,
            resolution_minutes=EXCLUDED.resolution_minutes,
            grace_minutes=EXCLUDED.grace_minutes,
            business_hours_only=EXCLUDED.business_hours_only,
            started_at=EXCLUDED.started_at,
            resolution_start_at=EXCLUDED.resolution_start_at,
            responded_at=EXCLUDED.responded_at,
            resolved_at=EXCLUDED.resolved_at,
            is_paused=EXCLUDED.is_paused,
            pause_start_at=EXCLUDED.pause_start_at,
            total_pause_minutes=EXCLUDED.total_pause_minutes,
            escalation_level=EXCLUDED.escalation_level,
            escalated_at=EXCLUDED.escalated_at,
            escalated_to=EXCLUDED.escalated_to,
            response_warnings_sent=EXCLUDED.response_warnings_sent,
            resolution_warnings_sent=EXCLUDED.resolution_warnings_sent,
            finalized=EXCLUDED.finalized,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query,
		workOrderID,
		rec.ResponseBy,
		rec.ResolveBy,
		rec.ResponseStatus,
		rec.ResolutionStatus,
		rec.ResponseBreached,
		rec.ResolutionBreached,
		rec.BreachMinutes,
		rec.ResponseMinutes,
		rec.ResolutionMinutes,
		rec.GraceMinutes,
		rec.BusinessHoursOnly,
		rec.StartedAt,
		rec.ResolutionStartAt,
		rec.RespondedAt,
		rec.ResolvedAt,
		rec.IsPaused,
		rec.PauseStartAt,
		rec.TotalPauseMinutes,
		rec.EscalationLevel,
		rec.EscalatedAt,
		rec.EscalatedTo,
		rec.ResponseWarningsSent,
		rec.ResolutionWarningsSent,
		rec.Finalized,
	)
	return err
}

func (r *workOrderRepository) DeleteSLA(ctx context.Context, workOrderID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM work_order_slas WHERE work_order_id=$1`, workOrderID)
	return err
}

func (r *workOrderRepository) attachSLA(ctx context.Context, wo *domain.WorkOrder) error {
	query := `SELECT ` + slaColumns + ` FROM work_order_slas WHERE work_order_id=$1`
	var rec domain.SLARecord
	err := r.pool.QueryRow(ctx, query, wo.ID).Scan(
		&rec.ResponseBy,
		&rec.ResolveBy,
		&rec.ResponseStatus,
		&rec.ResolutionStatus,
		&rec.ResponseBreached,
		&rec.ResolutionBreached,
		&rec.BreachMinutes,
		&rec.ResponseMinutes,
		&rec.ResolutionMinutes,
		&rec.GraceMinutes,
		&rec.BusinessHoursOnly,
		&rec.StartedAt,
		&rec.ResolutionStartAt,
		&rec.RespondedAt,
		&rec.ResolvedAt,
		&rec.IsPaused,
		&rec.PauseStartAt,
		&rec.TotalPauseMinutes,
		&rec.EscalationLevel,
		&rec.EscalatedAt,
		&rec.EscalatedTo,
		&rec.ResponseWarningsSent,
		&rec.ResolutionWarningsSent,
		&rec.Finalized,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		wo.SLA = nil
		return nil
	}
	if err != nil {
		return err
	}
	wo.SLA = &rec
	return nil
}

func (r *workOrderRepository) ListActiveWithSLA(ctx context.Context, limit int) ([]domain.WorkOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT w.id, w.external_key, w.requester_user_id, w.asset_id, w.team_id, w.assignee_technician_id,
               w.title, w.description, w.status, w.priority, w.work_order_type,
               w.submitted_at, w.approved_at, w.assigned_at, w.actual_start_at, w.completed_at, w.closed_at,
               w.created_at, w.updated_at
        FROM work_orders w
        JOIN work_order_slas s ON s.work_order_id = w.id
        WHERE s.finalized = FALSE AND w.status NOT IN ('CLOSED','CANCELLED')
        ORDER BY s.resolve_by ASC
        LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanWorkOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if err := r.attachSLA(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *workOrderRepository) ListSLAAttention(ctx context.Context, statuses []domain.SLAStatus, limit, offset int) ([]domain.WorkOrder, error) {
	if len(statuses) == 0 {
		statuses = []domain.SLAStatus{domain.SLAAtRisk, domain.SLABreached}
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	args := make([]any, 0, len(statuses))
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	in := strings.Join(placeholders, ",")

	query := fmt.Sprintf(`
        SELECT w.id, w.external_key, w.requester_user_id, w.asset_id, w.team_id, w.assignee_technician_id,
               w.title, w.description, w.status, w.priority, w.work_order_type,
               w.submitted_at, w.approved_at, w.assigned_at, w.actual_start_at, w.completed_at, w.closed_at,
               w.created_at, w.updated_at
        FROM work_orders w
        JOIN work_order_slas s ON s.work_order_id = w.id
        WHERE s.finalized = FALSE AND w.status NOT IN ('CLOSED','CANCELLED')
          AND (CASE
                 WHEN s.response_status = 'BREACHED' OR s.resolution_status = 'BREACHED' THEN 'BREACHED'
                 WHEN s.response_status = 'AT_RISK' OR s.resolution_status = 'AT_RISK' THEN 'AT_RISK'
                 ELSE 'ON_TRACK'
               END) IN (%s)
        ORDER BY s.resolve_by ASC
        LIMIT %d OFFSET %d`, in, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanWorkOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if err := r.attachSLA(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scanWorkOrder(row pgx.Row, wo *domain.WorkOrder) error {
	return row.Scan(
		&wo.ID,
		&wo.ExternalKey,
		&wo.RequesterID,
		&wo.AssetID,
		&wo.TeamID,
		&wo.AssigneeID,
		&wo.Title,
		&wo.Description,
		&wo.Status,
		&wo.Priority,
		&wo.Type,
		&wo.SubmittedAt,
		&wo.ApprovedAt,
		&wo.AssignedAt,
		&wo.ActualStartAt,
		&wo.CompletedAt,
		&wo.ClosedAt,
		&wo.CreatedAt,
		&wo.UpdatedAt,
	)
}

func scanWorkOrders(rows pgx.Rows) ([]domain.WorkOrder, error) {
	var result []domain.WorkOrder
	for rows.Next() {
		var wo domain.WorkOrder
		if err := scanWorkOrder(rows, &wo); err != nil {
			return nil, err
		}
		result = append(result, wo)
	}
	return result, rows.Err()
}
