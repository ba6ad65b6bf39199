package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// TechnicianService manages assets, teams and technician accounts.
type TechnicianService struct {
	assets      repository.AssetRepository
	teams       repository.TeamRepository
	technicians repository.TechnicianRepository
	bcryptCost  int
}

// TechnicianListFilters define listing parameters.
type TechnicianListFilters struct {
	Role   *domain.StaffRole
	TeamID *string
	Trade  *string
	Active *bool
	Limit  int
	Offset int
}

// OrgDependencies encapsulates repositories required for org management.
type OrgDependencies struct {
	AssetRepo      repository.AssetRepository
	TeamRepo       repository.TeamRepository
	TechnicianRepo repository.TechnicianRepository
}

// NewTechnicianService constructs the service.
func NewTechnicianService(cfg config.Config, deps OrgDependencies) *TechnicianService {
	return &TechnicianService{
		assets:      deps.AssetRepo,
		teams:       deps.TeamRepo,
		technicians: deps.TechnicianRepo,
		bcryptCost:  cfg.Auth.BcryptCost,
	}
}

func requireAdmin(actor *domain.Technician) error {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateAsset registers a new maintainable asset.
func (s *TechnicianService) CreateAsset(ctx context.Context, actor *domain.Technician, name, location, description string) (*domain.Asset, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	asset := &domain.Asset{
		Name:        name,
		Location:    location,
		Description: description,
		IsActive:    true,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, apperrors.MapError(err)
	}
	return asset, nil
}

// ListAssets returns assets, optionally inactive ones too. Open to all staff
// so technicians can browse what they maintain.
func (s *TechnicianService) ListAssets(ctx context.Context, includeInactive bool) ([]domain.Asset, error) {
	return s.assets.List(ctx, !includeInactive)
}

// GetAssetByID fetches an asset.
func (s *TechnicianService) GetAssetByID(ctx context.Context, id string) (*domain.Asset, error) {
	return s.assets.GetByID(ctx, id)
}

// UpdateAsset modifies asset metadata.
func (s *TechnicianService) UpdateAsset(ctx context.Context, actor *domain.Technician, asset *domain.Asset) (*domain.Asset, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.assets.Update(ctx, asset); err != nil {
		return nil, apperrors.MapError(err)
	}
	return asset, nil
}

// CreateTeam creates a maintenance team.
func (s *TechnicianService) CreateTeam(ctx context.Context, actor *domain.Technician, name, trade, description string) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	team := &domain.Team{
		Name:        name,
		Trade:       trade,
		Description: description,
		IsActive:    true,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, apperrors.MapError(err)
	}
	return team, nil
}

// ListTeams lists teams.
func (s *TechnicianService) ListTeams(ctx context.Context, includeInactive bool) ([]domain.Team, error) {
	return s.teams.List(ctx, !includeInactive)
}

// GetTeamByID fetches a team.
func (s *TechnicianService) GetTeamByID(ctx context.Context, id string) (*domain.Team, error) {
	return s.teams.GetByID(ctx, id)
}

// UpdateTeam updates team metadata.
func (s *TechnicianService) UpdateTeam(ctx context.Context, actor *domain.Technician, team *domain.Team) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, apperrors.MapError(err)
	}
	return team, nil
}

// CreateTechnician adds a new staff account.
func (s *TechnicianService) CreateTechnician(ctx context.Context, actor *domain.Technician, name, email, password string, role domain.StaffRole, teamID *string, trades []string) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if existing, err := s.technicians.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("technician email already exists", map[string]any{"email": email})
	} else if err != nil && err != pgx.ErrNoRows {
		return nil, apperrors.MapError(err)
	}

	if teamID != nil && *teamID != "" {
		team, err := s.teams.GetByID(ctx, *teamID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !team.IsActive {
			return nil, apperrors.NewConflict("team inactive", map[string]any{"team_id": *teamID})
		}
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	tech := &domain.Technician{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TeamID:       teamID,
		Trades:       trades,
		Active:       true,
	}
	if err := s.technicians.Create(ctx, tech); err != nil {
		return nil, apperrors.MapError(err)
	}
	return tech, nil
}

// ListTechnicians lists technicians with filters.
func (s *TechnicianService) ListTechnicians(ctx context.Context, actor *domain.Technician, filters TechnicianListFilters) ([]domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TechnicianFilter{
		Role:   filters.Role,
		TeamID: filters.TeamID,
		Trade:  filters.Trade,
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}
	return s.technicians.List(ctx, repoFilter)
}

// GetTechnicianByID fetches a technician.
func (s *TechnicianService) GetTechnicianByID(ctx context.Context, actor *domain.Technician, id string) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.technicians.GetByID(ctx, id)
}

// UpdateTechnician updates technician details.
func (s *TechnicianService) UpdateTechnician(ctx context.Context, actor *domain.Technician, techID, name, email string, role domain.StaffRole, teamID *string, trades []string, active bool) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tech, err := s.technicians.GetByID(ctx, techID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if email != "" && email != tech.Email {
		if existing, err := s.technicians.GetByEmail(ctx, email); err == nil && existing != nil && existing.ID != tech.ID {
			return nil, apperrors.NewConflict("technician email already exists", map[string]any{"email": email})
		} else if err != nil && err != pgx.ErrNoRows {
			return nil, apperrors.MapError(err)
		}
	}
	if teamID != nil && *teamID != "" {
		team, err := s.teams.GetByID(ctx, *teamID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !team.IsActive {
			return nil, apperrors.NewConflict("team inactive", map[string]any{"team_id": *teamID})
		}
	}

	tech.Name = name
	tech.Email = email
	tech.Role = role
	tech.TeamID = teamID
	tech.Trades = trades
	tech.Active = active

	if err := s.technicians.Update(ctx, tech); err != nil {
		return nil, apperrors.MapError(err)
	}
	return tech, nil
}
