package service

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/events"
	"github.com/codearena/codearena-go-api/internal/models"
	"github.com/codearena/codearena-go-api/internal/observability"
	"github.com/codearena/codearena-go-api/internal/repository"
)

// Actor is the authenticated identity performing a governed operation. It is
// supplied by the request boundary, never read from payloads.
type Actor struct {
	ID   uint
	Role authz.Role
}

// AuditEntry captures the details required to append a ledger entry.
// Reversibility is not a caller choice; it is stamped from the action kind.
type AuditEntry struct {
	Action      models.AuditAction
	PerformedBy uint
	TargetType  string
	TargetID    uint
	Metadata    interface{}
	RevertOfID  *uint
}

// AuditRecorder appends entries to the governance ledger.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) (models.AuditLog, error)
}

// AuditService exposes the append-only ledger and its query surface.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, actor Actor, req dto.AuditLogListRequest) (dto.AuditLogListResponse, error)
}

type auditService struct {
	repo      repository.AuditLogRepository
	policy    *authz.Policy
	publisher *events.AuditPublisher
	logger    zerolog.Logger
}

// NewAuditService constructs the ledger service. The publisher may be nil.
func NewAuditService(repo repository.AuditLogRepository, policy *authz.Policy, publisher *events.AuditPublisher, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		policy:    policy,
		publisher: publisher,
		logger:    logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) (models.AuditLog, error) {
	if entry.Action == "" {
		return models.AuditLog{}, validationError("audit action is required")
	}
	if entry.TargetType == "" {
		return models.AuditLog{}, validationError("audit target type is required")
	}

	metadata, err := models.EncodeMetadata(entry.Metadata)
	if err != nil {
		return models.AuditLog{}, err
	}

	model := models.AuditLog{
		Action:      string(entry.Action),
		PerformedBy: entry.PerformedBy,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Metadata:    metadata,
		Reversible:  entry.Action.Reversible(),
		RevertOfID:  entry.RevertOfID,
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", string(entry.Action)).Msg("failed to append ledger entry")
		return models.AuditLog{}, err
	}

	observability.AuditEntries().WithLabelValues(string(entry.Action)).Inc()
	s.publisher.Publish(model)

	return model, nil
}

func (s *auditService) List(ctx context.Context, actor Actor, req dto.AuditLogListRequest) (dto.AuditLogListResponse, error) {
	if !s.policy.IsAllowed(actor.Role, authz.ActionViewAuditLogs, authz.Context{}) {
		return dto.AuditLogListResponse{}, forbiddenError("insufficient permissions to view audit logs")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 50 {
		pageSize = 50
	}

	filter := repository.AuditLogFilter{
		Page:       req.Page,
		PageSize:   pageSize,
		Action:     req.Action,
		TargetType: req.TargetType,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		SortAsc:    req.SortAsc,
	}
	if req.PerformedBy > 0 {
		performedBy := req.PerformedBy
		filter.PerformedBy = &performedBy
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditLogListResponse{}, err
	}

	items := make([]dto.AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditLogResponse(entry))
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pagination := dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}

	return dto.AuditLogListResponse{Items: items, Pagination: pagination}, nil
}
