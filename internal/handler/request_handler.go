package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/service"
	"github.com/codearena/codearena-go-api/internal/utils"
)

// RequestHandler wires the pending request review endpoints.
type RequestHandler struct {
	service service.RequestService
	logger  zerolog.Logger
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service service.RequestService, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		logger:  logger.With().Str("component", "request_handler").Logger(),
	}
}

// Register attaches the request queue routes to the router group.
func (h *RequestHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterReview attaches the review verbs. The router mounts these behind a
// super admin gate; the service enforces the same rule on the request data.
func (h *RequestHandler) RegisterReview(router fiber.Router) {
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
}

// RegisterSelfService attaches the promotion request route. It is mounted
// outside the reviewer group because any eligible user may file one.
func (h *RequestHandler) RegisterSelfService(router fiber.Router) {
	router.Post("/promotion-requests", h.requestPromotion)
}

func (h *RequestHandler) requestPromotion(c *fiber.Ctx) error {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&payload); err != nil && len(c.Body()) > 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	response, err := h.service.RequestPromotion(c.Context(), actor, dto.RequestPromotionRequest{Reason: payload.Reason})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to file promotion request")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "promotion request submitted", response)
}

func (h *RequestHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.PendingRequestListRequest{
		Page:        page,
		PageSize:    pageSize,
		Status:      c.Query("status"),
		RequestType: c.Query("request_type"),
	}

	actor := actorFromContext(c)
	response, err := h.service.List(c.Context(), actor, req)
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to list pending requests")
	}

	return utils.SendSuccess(c, "pending requests retrieved", response)
}

func (h *RequestHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	response, err := h.service.Approve(c.Context(), actor, dto.ApprovePendingRequest{RequestID: id})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to approve request")
	}

	message := "request approved"
	if response.ActionResult != nil && !response.ActionResult.Success {
		message = "request approved, deferred action failed"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *RequestHandler) reject(c *fiber.Ctx) error {
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
	response, err := h.service.Reject(c.Context(), actor, dto.RejectPendingRequest{RequestID: id, Reason: payload.Reason})
	if err != nil {
		return sendGovernanceError(c, requestLogger(h.logger, c), err, "failed to reject request")
	}

	return utils.SendSuccess(c, "request rejected", response)
}
