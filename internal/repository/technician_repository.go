package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// TechnicianRepository handles persistence for maintenance staff.
type TechnicianRepository interface {
	Create(ctx context.Context, tech *domain.Technician) error
	Update(ctx context.Context, tech *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	GetByEmail(ctx context.Context, email string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	// ListAvailableByTeam returns active technicians on a team ordered by the
	// number of open work orders currently assigned to them, least loaded first.
	ListAvailableByTeam(ctx context.Context, teamID string) ([]domain.Technician, error)
}

// TechnicianFilter defines query params for technician listing.
type TechnicianFilter struct {
	Role   *domain.StaffRole
	TeamID *string
	Trade  *string
	Active *bool
	Limit  int
	Offset int
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

func (r *technicianRepository) Create(ctx context.Context, tech *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, email, password_hash, role, team_id, trades, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		tech.Name,
		tech.Email,
		tech.PasswordHash,
		tech.Role,
		tech.TeamID,
		tech.Trades,
		tech.Active,
	).Scan(&tech.ID, &tech.CreatedAt, &tech.UpdatedAt)
}

func (r *technicianRepository) Update(ctx context.Context, tech *domain.Technician) error {
	const query = `
        UPDATE technicians
        SET name=$1, email=$2, password_hash=$3, role=$4, team_id=$5, trades=$6, active=$7, updated_at=NOW()
        WHERE id=$8`

	cmd, err := r.pool.Exec(ctx, query,
		tech.Name,
		tech.Email,
		tech.PasswordHash,
		tech.Role,
		tech.TeamID,
		tech.Trades,
		tech.Active,
		tech.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const technicianColumns = `id, name, email, password_hash, role, team_id, trades, active, created_at, updated_at`

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *technicianRepository) GetByEmail(ctx context.Context, email string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Technician, error) {
	var tech domain.Technician
	if err := scanTechnician(r.pool.QueryRow(ctx, query, arg), &tech); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		clauses = append(clauses, fmt.Sprintf("team_id=$%d", len(args)))
	}
	if filter.Trade != nil {
		args = append(args, *filter.Trade)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(trades)", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func (r *technicianRepository) ListAvailableByTeam(ctx context.Context, teamID string) ([]domain.Technician, error) {
	const query = `
        SELECT t.id, t.name, t.email, t.password_hash, t.role, t.team_id, t.trades, t.active, t.created_at, t.updated_at
        FROM technicians t
        LEFT JOIN work_orders w
            ON w.assignee_technician_id = t.id AND w.status NOT IN ('COMPLETED','CLOSED','CANCELLED')
        WHERE t.team_id=$1 AND t.active=TRUE AND t.role='TECHNICIAN'
        GROUP BY t.id
        ORDER BY COUNT(w.id) ASC, t.created_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func scanTechnician(row pgx.Row, tech *domain.Technician) error {
	return row.Scan(
		&tech.ID,
		&tech.Name,
		&tech.Email,
		&tech.PasswordHash,
		&tech.Role,
		&tech.TeamID,
		&tech.Trades,
		&tech.Active,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	)
}

func scanTechnicians(rows pgx.Rows) ([]domain.Technician, error) {
	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := scanTechnician(rows, &tech); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}
