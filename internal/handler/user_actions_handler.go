package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/service"
	"github.com/codearena/codearena-go-api/internal/utils"
)

// UserActionsHandler wires the governed user-management endpoints.
type UserActionsHandler struct {
	service service.UserActionsService
	logger  zerolog.Logger
}

// NewUserActionsHandler constructs the handler.
func NewUserActionsHandler(service service.UserActionsService, logger zerolog.Logger) *UserActionsHandler {
	return &UserActionsHandler{
		service: service,
		logger:  logger.With().Str("component", "user_actions_handler").Logger(),
	}
}

// Register attaches user governance routes to the router group.
func (h *UserActionsHandler) Register(router fiber.Router) {
	router.Delete("/:id", h.delete)
	router.Put("/:id/role", h.setRole)
	router.Post("/:id/promote", h.promote)
	router.Post("/:id/demote", h.demote)
}

func (h *UserActionsHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.DeleteUser(c.Context(), actor, dto.DeleteUserRequest{TargetUserID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to delete user")
	}

	return utils.SendSuccess(c, "user deleted", response)
}

func (h *UserActionsHandler) setRole(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload struct {
		NewRole string `json:"new_role"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	response, err := h.service.SetUserRole(c.Context(), actor, dto.SetUserRoleRequest{TargetUserID: id, NewRole: payload.NewRole})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to set user role")
	}

	message := "user role changed"
	if response.RequiresApproval {
		message = "role change submitted for approval"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *UserActionsHandler) promote(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.PromoteUser(c.Context(), actor, dto.PromoteUserRequest{TargetUserID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to promote user")
	}

	message := "user promoted"
	if response.RequiresApproval {
		message = "promotion submitted for approval"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *UserActionsHandler) demote(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.DemoteUser(c.Context(), actor, dto.DemoteUserRequest{TargetUserID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to demote user")
	}

	message := "user demoted"
	if response.RequiresApproval {
		message = "demotion submitted for approval"
	}
	return utils.SendSuccess(c, message, response)
}
