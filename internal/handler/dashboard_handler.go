package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/service"
	"github.com/codearena/codearena-go-api/internal/utils"
)

// DashboardHandler wires the governance dashboard endpoints.
type DashboardHandler struct {
	service service.DashboardService
	catalog *authz.Catalog
	logger  zerolog.Logger
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service service.DashboardService, catalog *authz.Catalog, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		catalog: catalog,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches dashboard routes to the router group.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/summary", h.summary)
	router.Get("/permissions", h.permissions)
}

func (h *DashboardHandler) summary(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	response, err := h.service.GetSummary(c.Context(), actor)
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to build governance summary")
	}

	return utils.SendSuccess(c, "governance summary retrieved", response)
}

// permissions returns the caller's full inherited grant list.
func (h *DashboardHandler) permissions(c *fiber.Ctx) error {
	role, ok := authz.ParseRole(userRoleFromContext(c))
	if !ok {
		return utils.SendError(c, fiber.StatusForbidden, "unknown role")
	}

	return utils.SendSuccess(c, "permissions retrieved", fiber.Map{
		"role":        role,
		"permissions": h.catalog.PermissionsFor(role),
	})
}
