package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/models"
	"github.com/codearena/codearena-go-api/internal/repository"
)

// RequestService reviews deferred privileged actions. Approval executes the
// deferred mutation; the executor outcome is captured into the governance
// records even when the mutation itself fails, so the trail always reflects
// that an attempt was made.
type RequestService interface {
	List(ctx context.Context, actor Actor, req dto.PendingRequestListRequest) (dto.PendingRequestListResponse, error)
	RequestPromotion(ctx context.Context, actor Actor, req dto.RequestPromotionRequest) (dto.PendingRequestResponse, error)
	Approve(ctx context.Context, actor Actor, req dto.ApprovePendingRequest) (dto.RequestReviewResponse, error)
	Reject(ctx context.Context, actor Actor, req dto.RejectPendingRequest) (dto.RequestReviewResponse, error)
}

type requestService struct {
	requests  repository.PendingRequestRepository
	users     repository.UserRepository
	audit     AuditRecorder
	policy    *authz.Policy
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRequestService constructs the pending request reviewer.
func NewRequestService(requests repository.PendingRequestRepository, users repository.UserRepository, audit AuditRecorder, policy *authz.Policy, validate *validator.Validate, logger zerolog.Logger) RequestService {
	return &requestService{
		requests:  requests,
		users:     users,
		audit:     audit,
		policy:    policy,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "request_service").Logger(),
		tracer:    otel.Tracer("github.com/codearena/codearena-go-api/internal/service/request"),
		now:       time.Now,
	}
}

func (s *requestService) List(ctx context.Context, actor Actor, req dto.PendingRequestListRequest) (dto.PendingRequestListResponse, error) {
	if !s.policy.IsAllowed(actor.Role, authz.ActionViewPendingRequests, authz.Context{}) {
		return dto.PendingRequestListResponse{}, forbiddenError("insufficient permissions to view pending requests")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 50 {
		pageSize = 50
	}

	requests, total, err := s.requests.List(ctx, repository.PendingRequestFilter{
		Page:        req.Page,
		PageSize:    pageSize,
		Status:      req.Status,
		RequestType: req.RequestType,
	})
	if err != nil {
		return dto.PendingRequestListResponse{}, err
	}

	items := make([]dto.PendingRequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.NewPendingRequestResponse(request))
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}

	return dto.PendingRequestListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// RequestPromotion files a self-service promotion request for the actor's next
// role. The promotion itself always waits for a super admin review.
func (s *requestService) RequestPromotion(ctx context.Context, actor Actor, req dto.RequestPromotionRequest) (dto.PendingRequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.request.promotion")
	span.SetAttributes(attribute.Int64("governance.actor_id", int64(actor.ID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.PendingRequestResponse{}, validationError("reason is too long")
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PendingRequestResponse{}, notFoundError("user not found")
		}
		return dto.PendingRequestResponse{}, err
	}

	currentRole, ok := authz.ParseRole(user.Role)
	if !ok {
		return dto.PendingRequestResponse{}, conflictError("cannot request promotion from role %s", user.Role)
	}
	if currentRole.AtLeast(authz.RoleAdmin) {
		return dto.PendingRequestResponse{}, conflictError("user already holds the %s role or higher", authz.RoleAdmin)
	}
	if !s.policy.IsAllowed(currentRole, authz.ActionRequestPromotion, authz.Context{TargetRole: authz.RoleAdmin, CurrentUserID: actor.ID}) {
		return dto.PendingRequestResponse{}, forbiddenError("promotion to %s cannot be requested", authz.RoleAdmin)
	}

	pending, err := s.requests.CountPendingByRequester(ctx, actor.ID, models.RequestTypeAdminPromotion)
	if err != nil {
		return dto.PendingRequestResponse{}, err
	}
	if pending > 0 {
		return dto.PendingRequestResponse{}, conflictError("a promotion request is already pending")
	}

	reason := s.sanitizer.Sanitize(req.Reason)
	if reason == "" {
		reason = "Promotion requested"
	}

	request := models.PendingRequest{
		RequestType: models.RequestTypeAdminPromotion,
		RequestedBy: actor.ID,
		TargetID:    actor.ID,
		TargetType:  models.TargetTypeUser,
		NewRole:     string(authz.RoleAdmin),
		Reason:      reason,
		Status:      models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, &request); err != nil {
		return dto.PendingRequestResponse{}, err
	}

	s.logger.Info().Uint("requested_by", actor.ID).Msg("promotion request filed")

	return dto.NewPendingRequestResponse(request), nil
}

func (s *requestService) Approve(ctx context.Context, actor Actor, req dto.ApprovePendingRequest) (dto.RequestReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.request.approve")
	span.SetAttributes(attribute.Int64("governance.request_id", int64(req.RequestID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.RequestReviewResponse{}, validationError("request id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionApproveRequests, authz.Context{}) || actor.Role != authz.RoleSuperAdmin {
		return dto.RequestReviewResponse{}, forbiddenError("only a super admin can approve requests")
	}

	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return dto.RequestReviewResponse{}, err
	}
	if request.Status != models.RequestStatusPending {
		return dto.RequestReviewResponse{}, conflictError("request is already %s", request.Status)
	}

	switch request.RequestType {
	case models.RequestTypeRoleChange, models.RequestTypeDemotion, models.RequestTypeAdminPromotion:
	default:
		return dto.RequestReviewResponse{}, validationError("unknown request type: %s", request.RequestType)
	}

	// Claim the pending status before executing so a racing reviewer cannot
	// run the deferred mutation twice.
	reviewedAt := s.now()
	swapped, err := s.requests.MarkReviewed(ctx, request.ID, models.RequestStatusApproved, actor.ID, reviewedAt, nil)
	if err != nil {
		return dto.RequestReviewResponse{}, err
	}
	if !swapped {
		return dto.RequestReviewResponse{}, conflictError("request was reviewed concurrently")
	}

	result := s.execute(ctx, request)
	if !result.Success {
		s.logger.Error().Uint("request_id", request.ID).Str("request_type", request.RequestType).Str("error", result.Error).Msg("deferred action failed during approval")
	}

	approvalEntry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditRequestApproved,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeRequest,
		TargetID:    request.ID,
		Metadata: models.RequestReviewMetadata{
			RequestType:    request.RequestType,
			RequestedBy:    request.RequestedBy,
			OriginalReason: request.Reason,
			ActionResult:   &result,
		},
	})
	if err != nil {
		return dto.RequestReviewResponse{}, err
	}

	if _, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.ExecutedAction(request.RequestType),
		PerformedBy: actor.ID,
		TargetType:  request.TargetType,
		TargetID:    request.TargetID,
		Metadata: models.ExecutionMetadata{
			ExecutedViaRequest: request.ID,
			ActionResult:       result,
		},
	}); err != nil {
		return dto.RequestReviewResponse{}, err
	}

	s.logger.Info().Uint("request_id", request.ID).Uint("approval_entry", approvalEntry.ID).Msg("pending request approved")

	return dto.RequestReviewResponse{
		RequestID:    request.ID,
		RequestType:  request.RequestType,
		Status:       models.RequestStatusApproved,
		ActionResult: &result,
		ReviewedAt:   reviewedAt,
	}, nil
}

func (s *requestService) Reject(ctx context.Context, actor Actor, req dto.RejectPendingRequest) (dto.RequestReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.request.reject")
	span.SetAttributes(attribute.Int64("governance.request_id", int64(req.RequestID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.RequestReviewResponse{}, validationError("request id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionRejectRequests, authz.Context{}) || actor.Role != authz.RoleSuperAdmin {
		return dto.RequestReviewResponse{}, forbiddenError("only a super admin can reject requests")
	}

	request, err := s.loadRequest(ctx, req.RequestID)
	if err != nil {
		return dto.RequestReviewResponse{}, err
	}
	if request.Status != models.RequestStatusPending {
		return dto.RequestReviewResponse{}, conflictError("request is already %s", request.Status)
	}

	rejectionReason := s.sanitizer.Sanitize(req.Reason)
	if rejectionReason == "" {
		rejectionReason = "No reason provided"
	}

	var reasonUpdate *string
	if req.Reason != "" {
		combined := request.Reason + " | REJECTION REASON: " + rejectionReason
		reasonUpdate = &combined
	}

	reviewedAt := s.now()
	swapped, err := s.requests.MarkReviewed(ctx, request.ID, models.RequestStatusRejected, actor.ID, reviewedAt, reasonUpdate)
	if err != nil {
		return dto.RequestReviewResponse{}, err
	}
	if !swapped {
		return dto.RequestReviewResponse{}, conflictError("request was reviewed concurrently")
	}

	if _, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditRequestRejected,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeRequest,
		TargetID:    request.ID,
		Metadata: models.RequestReviewMetadata{
			RequestType:     request.RequestType,
			RequestedBy:     request.RequestedBy,
			OriginalReason:  request.Reason,
			RejectionReason: rejectionReason,
		},
	}); err != nil {
		return dto.RequestReviewResponse{}, err
	}

	return dto.RequestReviewResponse{
		RequestID:   request.ID,
		RequestType: request.RequestType,
		Status:      models.RequestStatusRejected,
		Reason:      rejectionReason,
		ReviewedAt:  reviewedAt,
	}, nil
}

// execute runs the deferred mutation for an approved request. Failures are
// captured in the returned result, never raised.
func (s *requestService) execute(ctx context.Context, request models.PendingRequest) models.ActionResult {
	switch request.RequestType {
	case models.RequestTypeRoleChange:
		return s.executeRoleChange(ctx, request, "role_changed", request.NewRole)
	case models.RequestTypeDemotion:
		return s.executeDemotion(ctx, request)
	case models.RequestTypeAdminPromotion:
		return s.executeRoleChange(ctx, request, "user_promoted_to_admin", string(authz.RoleAdmin))
	default:
		return models.ActionResult{Action: "unknown_request_type", Error: "unknown request type: " + request.RequestType}
	}
}

func (s *requestService) executeRoleChange(ctx context.Context, request models.PendingRequest, resultAction, newRole string) models.ActionResult {
	if _, ok := authz.ParseRole(newRole); !ok {
		return models.ActionResult{Action: resultAction + "_failed", TargetUserID: request.TargetID, Error: "invalid requested role: " + newRole}
	}

	user, err := s.users.GetByID(ctx, request.TargetID)
	if err != nil {
		return models.ActionResult{Action: resultAction + "_failed", TargetUserID: request.TargetID, Error: err.Error()}
	}

	if err := s.applyRoleChange(ctx, user, newRole); err != nil {
		return models.ActionResult{Action: resultAction + "_failed", TargetUserID: request.TargetID, OldRole: user.Role, NewRole: newRole, Error: err.Error()}
	}

	return models.ActionResult{
		Action:       resultAction,
		TargetUserID: request.TargetID,
		OldRole:      user.Role,
		NewRole:      newRole,
		Success:      true,
	}
}

func (s *requestService) executeDemotion(ctx context.Context, request models.PendingRequest) models.ActionResult {
	user, err := s.users.GetByID(ctx, request.TargetID)
	if err != nil {
		return models.ActionResult{Action: "demotion_failed", TargetUserID: request.TargetID, Error: err.Error()}
	}

	currentRole, ok := authz.ParseRole(user.Role)
	if !ok {
		return models.ActionResult{Action: "demotion_failed", TargetUserID: request.TargetID, Error: "cannot demote from role: " + user.Role}
	}
	previousRole, ok := currentRole.Previous()
	if !ok {
		return models.ActionResult{Action: "demotion_failed", TargetUserID: request.TargetID, Error: "cannot demote from role: " + user.Role}
	}

	if err := s.applyRoleChange(ctx, user, string(previousRole)); err != nil {
		return models.ActionResult{Action: "demotion_failed", TargetUserID: request.TargetID, OldRole: user.Role, Error: err.Error()}
	}

	return models.ActionResult{
		Action:       "user_demoted",
		TargetUserID: request.TargetID,
		OldRole:      string(currentRole),
		NewRole:      string(previousRole),
		Success:      true,
	}
}

func (s *requestService) applyRoleChange(ctx context.Context, user models.User, newRole string) error {
	for attempt := 0; ; attempt++ {
		updated, err := s.users.UpdateRole(ctx, user.ID, newRole, user.Version)
		if err != nil {
			return err
		}
		if updated {
			return nil
		}
		if attempt+1 >= casAttempts {
			return conflictError("user was modified concurrently")
		}
		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
	}
}

func (s *requestService) loadRequest(ctx context.Context, id uint) (models.PendingRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PendingRequest{}, notFoundError("request not found")
		}
		return models.PendingRequest{}, err
	}
	return request, nil
}
