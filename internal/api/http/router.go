package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/observability"
)

// RouteConfig bundles everything route registration needs.
type RouteConfig struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	RequestTimeout time.Duration

	AuthMiddleware *auth.AuthMiddleware

	Health          *handlers.HealthHandler
	Users           *handlers.UsersHandler
	Staff           *handlers.StaffHandler
	WorkOrders      *handlers.WorkOrdersHandler
	StaffWorkOrders *handlers.StaffWorkOrdersHandler
	Admin           *handlers.AdminHandler
}

// RegisterRoutes wires middlewares and the full route tree onto the app.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(errorHandlingMiddleware(cfg.Logger, cfg.Metrics))
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(requestTimeoutMiddleware(cfg.RequestTimeout))

	app.Get("/healthz", cfg.Health.Live)
	app.Get("/readyz", cfg.Health.Ready)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/staff/login", cfg.Staff.Login)
	authGroup.Post("/password-reset", cfg.Staff.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", cfg.Staff.ConfirmPasswordReset)
	authGroup.Post("/password", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Staff.ChangePassword)

	userGroup := api.Group("/workorders", cfg.AuthMiddleware.Handle, auth.RequireUser())
	userGroup.Post("/", cfg.WorkOrders.Create)
	userGroup.Get("/", cfg.WorkOrders.List)
	userGroup.Get("/:id", cfg.WorkOrders.Get)
	userGroup.Post("/:id/actions", cfg.WorkOrders.PerformAction)
	userGroup.Post("/:id/comments", cfg.WorkOrders.AddComment)

	staffGroup := api.Group("/staff/workorders", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staffGroup.Get("/", cfg.StaffWorkOrders.List)
	// Registered ahead of the :id routes so "sla" is not taken for an id.
	staffGroup.Get("/sla/attention", cfg.StaffWorkOrders.SLAAttention)
	staffGroup.Get("/:id", cfg.StaffWorkOrders.Get)
	staffGroup.Post("/:id/actions", cfg.StaffWorkOrders.PerformAction)
	staffGroup.Post("/:id/comments", cfg.StaffWorkOrders.AddComment)
	staffGroup.Get("/:id/history", cfg.StaffWorkOrders.History)
	staffGroup.Get("/:id/sla", cfg.StaffWorkOrders.SLAStatus)
	staffGroup.Post("/:id/assign/self", cfg.StaffWorkOrders.SelfAssign)

	// Priority, routed assignment and forced SLA evaluation need supervisor
	// rank or above.
	supervisorUp := auth.RequireStaffRole(domain.StaffRoleSupervisor, domain.StaffRoleManager, domain.StaffRoleAdmin)
	staffGroup.Patch("/:id/priority", supervisorUp, cfg.StaffWorkOrders.UpdatePriority)
	staffGroup.Post("/:id/assign", supervisorUp, cfg.StaffWorkOrders.Assign)
	staffGroup.Post("/:id/sla/evaluate", supervisorUp, cfg.StaffWorkOrders.EvaluateSLA)

	adminGroup := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireStaffRole(domain.StaffRoleAdmin))
	adminGroup.Post("/assets", cfg.Admin.CreateAsset)
	adminGroup.Get("/assets", cfg.Admin.ListAssets)
	adminGroup.Get("/assets/:id", cfg.Admin.GetAsset)
	adminGroup.Patch("/assets/:id", cfg.Admin.UpdateAsset)
	adminGroup.Post("/teams", cfg.Admin.CreateTeam)
	adminGroup.Get("/teams", cfg.Admin.ListTeams)
	adminGroup.Get("/teams/:id", cfg.Admin.GetTeam)
	adminGroup.Patch("/teams/:id", cfg.Admin.UpdateTeam)
	adminGroup.Post("/technicians", cfg.Admin.CreateTechnician)
	adminGroup.Get("/technicians", cfg.Admin.ListTechnicians)
	adminGroup.Get("/technicians/:id", cfg.Admin.GetTechnician)
	adminGroup.Patch("/technicians/:id", cfg.Admin.UpdateTechnician)
}
