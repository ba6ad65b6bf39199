package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// CommentRepository manages the work order comment thread.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByWorkOrder(ctx context.Context, workOrderID string, includeInternal bool) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (work_order_id, author_type, author_id, comment_type, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.WorkOrderID,
		comment.AuthorType,
		comment.AuthorID,
		comment.CommentType,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByWorkOrder(ctx context.Context, workOrderID string, includeInternal bool) ([]domain.Comment, error) {
	query := `
        SELECT id, work_order_id, author_type, author_id, comment_type, body, created_at
        FROM comments WHERE work_order_id=$1`
	if !includeInternal {
		query += ` AND comment_type <> 'INTERNAL_NOTE'`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.WorkOrderID,
			&comment.AuthorType,
			&comment.AuthorID,
			&comment.CommentType,
			&comment.Body,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
