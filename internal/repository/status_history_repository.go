package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// StatusHistoryRepository stores the append-only transition audit trail.
type StatusHistoryRepository interface {
	Create(ctx context.Context, change *domain.StatusChange) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.StatusChange, error)
}

type statusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepository{pool: pool}
}

func (r *statusHistoryRepository) Create(ctx context.Context, change *domain.StatusChange) error {
	const query = `
        INSERT INTO status_history (work_order_id, from_status, to_status, action, changed_by, changed_by_type, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, changed_at`
	return r.pool.QueryRow(ctx, query,
		change.WorkOrderID,
		change.FromStatus,
		change.ToStatus,
		change.Action,
		change.ChangedBy,
		change.ChangedByType,
		change.Reason,
	).Scan(&change.ID, &change.ChangedAt)
}

func (r *statusHistoryRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.StatusChange, error) {
	const query = `
        SELECT id, work_order_id, from_status, to_status, action, changed_by, changed_by_type, reason, changed_at
        FROM status_history WHERE work_order_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(
			&change.ID,
			&change.WorkOrderID,
			&change.FromStatus,
			&change.ToStatus,
			&change.Action,
			&change.ChangedBy,
			&change.ChangedByType,
			&change.Reason,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
