package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/service"
	"github.com/codearena/codearena-go-api/internal/utils"
)

// ProblemActionsHandler wires the problem moderation endpoints.
type ProblemActionsHandler struct {
	service service.ProblemActionsService
	logger  zerolog.Logger
}

// NewProblemActionsHandler constructs the handler.
func NewProblemActionsHandler(service service.ProblemActionsService, logger zerolog.Logger) *ProblemActionsHandler {
	return &ProblemActionsHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_actions_handler").Logger(),
	}
}

// Register attaches problem moderation routes to the router group.
func (h *ProblemActionsHandler) Register(router fiber.Router) {
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Delete("/:id", h.delete)
	router.Patch("/:id", h.update)
}

func (h *ProblemActionsHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.ApproveProblem(c.Context(), actor, dto.ApproveProblemRequest{ProblemID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to approve problem")
	}

	return utils.SendSuccess(c, "problem approved", response)
}

func (h *ProblemActionsHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&payload); err != nil && len(c.Body()) > 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	response, err := h.service.RejectProblem(c.Context(), actor, dto.RejectProblemRequest{ProblemID: id, Reason: payload.Reason})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to reject problem")
	}

	return utils.SendSuccess(c, "problem rejected", response)
}

func (h *ProblemActionsHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.DeleteProblem(c.Context(), actor, dto.DeleteProblemRequest{ProblemID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to delete problem")
	}

	return utils.SendSuccess(c, "problem deleted", response)
}

func (h *ProblemActionsHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload struct {
		Updates map[string]interface{} `json:"updates"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	response, err := h.service.UpdateProblem(c.Context(), actor, dto.UpdateProblemRequest{ProblemID: id, Updates: payload.Updates})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to update problem")
	}

	return utils.SendSuccess(c, "problem updated", response)
}
