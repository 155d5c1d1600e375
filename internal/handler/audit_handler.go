package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/service"
	"github.com/codearena/codearena-go-api/internal/utils"
)

// AuditHandler wires the ledger query and revert endpoints.
type AuditHandler struct {
	audits  service.AuditService
	reverts service.RevertService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audits service.AuditService, reverts service.RevertService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		audits:  audits,
		reverts: reverts,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register attaches ledger routes to the router group.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/:id/revert", h.revert)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	performedBy, err := parseQueryInt(c, "performed_by")
	if err != nil || performedBy < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid performed_by")
	}

	req := dto.AuditLogListRequest{
		Page:        page,
		PageSize:    pageSize,
		Action:      c.Query("action"),
		TargetType:  c.Query("target_type"),
		PerformedBy: uint(performedBy),
		SortAsc:     c.Query("sort") == "asc",
	}
	if from := c.Query("date_from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid date_from")
		}
		req.DateFrom = &parsed
	}
	if to := c.Query("date_to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid date_to")
		}
		req.DateTo = &parsed
	}

	actor := actorFromContext(c)
	response, err := h.audits.List(c.Context(), actor, req)
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to list audit logs")
	}

	return utils.SendSuccess(c, "audit logs retrieved", response)
}

func (h *AuditHandler) revert(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.reverts.Revert(c.Context(), actor, dto.RevertActionRequest{AuditID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to revert action")
	}

	message := "action reverted"
	if !response.RevertResult.Success {
		message = "revert recorded, undo handler failed"
	}
	return utils.SendSuccess(c, message, response)
}
