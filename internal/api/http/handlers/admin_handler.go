package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// AdminHandler serves asset, team and technician administration.
type AdminHandler struct {
	technicianService *service.TechnicianService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(technicianService *service.TechnicianService) *AdminHandler {
	return &AdminHandler{technicianService: technicianService}
}

// CreateAsset registers a new asset.
func (h *AdminHandler) CreateAsset(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Name == "" {
		return apperrors.NewValidationError("name is required", nil)
	}

	asset, err := h.technicianService.CreateAsset(c.UserContext(), tech, req.Name, req.Location, req.Description)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(assetResponse(asset))
}

// ListAssets returns assets, optionally including retired ones.
func (h *AdminHandler) ListAssets(c *fiber.Ctx) error {
	includeInactive := c.Query("include_inactive") == "true"
	assets, err := h.technicianService.ListAssets(c.UserContext(), includeInactive)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(assets))
	for i := range assets {
		out = append(out, assetResponse(&assets[i]))
	}
	return c.JSON(fiber.Map{"assets": out})
}

// GetAsset returns one asset.
func (h *AdminHandler) GetAsset(c *fiber.Ctx) error {
	asset, err := h.technicianService.GetAssetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(assetResponse(asset))
}

// UpdateAsset updates asset metadata or active flag.
func (h *AdminHandler) UpdateAsset(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	asset, err := h.technicianService.GetAssetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	var req struct {
		Name        string `json:"name"`
		Location    string `json:"location"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Name != "" {
		asset.Name = req.Name
	}
	if req.Location != "" {
		asset.Location = req.Location
	}
	if req.Description != "" {
		asset.Description = req.Description
	}
	if req.IsActive != nil {
		asset.IsActive = *req.IsActive
	}

	updated, err := h.technicianService.UpdateAsset(c.UserContext(), tech, asset)
	if err != nil {
		return err
	}
	return c.JSON(assetResponse(updated))
}

// CreateTeam registers a new team.
func (h *AdminHandler) CreateTeam(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Name == "" {
		return apperrors.NewValidationError("name is required", nil)
	}

	team, err := h.technicianService.CreateTeam(c.UserContext(), tech, req.Name, req.Trade, req.Description)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(teamResponse(team))
}

// ListTeams returns teams.
func (h *AdminHandler) ListTeams(c *fiber.Ctx) error {
	includeInactive := c.Query("include_inactive") == "true"
	teams, err := h.technicianService.ListTeams(c.UserContext(), includeInactive)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(teams))
	for i := range teams {
		out = append(out, teamResponse(&teams[i]))
	}
	return c.JSON(fiber.Map{"teams": out})
}

// GetTeam returns one team.
func (h *AdminHandler) GetTeam(c *fiber.Ctx) error {
	team, err := h.technicianService.GetTeamByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(teamResponse(team))
}

// UpdateTeam updates team metadata or active flag.
func (h *AdminHandler) UpdateTeam(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	team, err := h.technicianService.GetTeamByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	var req struct {
		Name        string `json:"name"`
		Trade       string `json:"trade"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Name != "" {
		team.Name = req.Name
	}
	if req.Trade != "" {
		team.Trade = req.Trade
	}
	if req.Description != "" {
		team.Description = req.Description
	}
	if req.IsActive != nil {
		team.IsActive = *req.IsActive
	}

	updated, err := h.technicianService.UpdateTeam(c.UserContext(), tech, team)
	if err != nil {
		return err
	}
	return c.JSON(teamResponse(updated))
}

// CreateTechnician registers a staff account.
func (h *AdminHandler) CreateTechnician(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("name, email and a password of at least 8 characters are required", nil)
	}

	created, err := h.technicianService.CreateTechnician(c.UserContext(), tech, req.Name, req.Email, req.Password, domain.StaffRole(req.Role), req.TeamID, req.Trades)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(technicianResponse(created))
}

// ListTechnicians returns staff accounts matching the query filters.
func (h *AdminHandler) ListTechnicians(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	filters := service.TechnicianListFilters{
		TeamID: optionalQuery(c, "team_id"),
		Trade:  optionalQuery(c, "trade"),
		Limit:  parseInt(c.Query("limit"), 50),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if role := c.Query("role"); role != "" {
		r := domain.StaffRole(role)
		filters.Role = &r
	}
	if active := c.Query("active"); active != "" {
		b := active == "true"
		filters.Active = &b
	}

	technicians, err := h.technicianService.ListTechnicians(c.UserContext(), tech, filters)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(technicians))
	for i := range technicians {
		out = append(out, technicianResponse(&technicians[i]))
	}
	return c.JSON(fiber.Map{"technicians": out})
}

// GetTechnician returns one staff account.
func (h *AdminHandler) GetTechnician(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	found, err := h.technicianService.GetTechnicianByID(c.UserContext(), tech, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(technicianResponse(found))
}

// UpdateTechnician updates a staff account.
func (h *AdminHandler) UpdateTechnician(c *fiber.Ctx) error {
	tech, err := staffPrincipal(c)
	if err != nil {
		return err
	}

	current, err := h.technicianService.GetTechnicianByID(c.UserContext(), tech, c.Params("id"))
	if err != nil {
		return err
	}

	req := dto.UpdateTechnicianRequest{
		Name:   current.Name,
		Email:  current.Email,
		Role:   string(current.Role),
		TeamID: current.TeamID,
		Trades: current.Trades,
		Active: current.Active,
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	updated, err := h.technicianService.UpdateTechnician(c.UserContext(), tech, current.ID, req.Name, req.Email, domain.StaffRole(req.Role), req.TeamID, req.Trades, req.Active)
	if err != nil {
		return err
	}
	return c.JSON(technicianResponse(updated))
}

func assetResponse(asset *domain.Asset) fiber.Map {
	return fiber.Map{
		"id":          asset.ID,
		"name":        asset.Name,
		"location":    asset.Location,
		"description": asset.Description,
		"is_active":   asset.IsActive,
		"created_at":  asset.CreatedAt,
		"updated_at":  asset.UpdatedAt,
	}
}

func teamResponse(team *domain.Team) fiber.Map {
	return fiber.Map{
		"id":          team.ID,
		"name":        team.Name,
		"trade":       team.Trade,
		"description": team.Description,
		"is_active":   team.IsActive,
		"created_at":  team.CreatedAt,
		"updated_at":  team.UpdatedAt,
	}
}

func technicianResponse(tech *domain.Technician) fiber.Map {
	return fiber.Map{
		"id":         tech.ID,
		"name":       tech.Name,
		"email":      tech.Email,
		"role":       tech.Role,
		"team_id":    tech.TeamID,
		"trades":     tech.Trades,
		"active":     tech.Active,
		"created_at": tech.CreatedAt,
		"updated_at": tech.UpdatedAt,
	}
}
