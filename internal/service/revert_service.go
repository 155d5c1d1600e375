package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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

// RevertService undoes previously recorded governance actions. Each ledger
// entry can be reverted at most once; the revert itself is appended to the
// ledger and is never reversible.
type RevertService interface {
	Revert(ctx context.Context, actor Actor, req dto.RevertActionRequest) (dto.RevertActionResponse, error)
}

type revertService struct {
	auditLogs repository.AuditLogRepository
	users     repository.UserRepository
	problems  repository.ProblemRepository
	requests  repository.PendingRequestRepository
	audit     AuditRecorder
	policy    *authz.Policy
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRevertService constructs the revert engine.
func NewRevertService(
	auditLogs repository.AuditLogRepository,
	users repository.UserRepository,
	problems repository.ProblemRepository,
	requests repository.PendingRequestRepository,
	audit AuditRecorder,
	policy *authz.Policy,
	validate *validator.Validate,
	logger zerolog.Logger,
) RevertService {
	return &revertService{
		auditLogs: auditLogs,
		users:     users,
		problems:  problems,
		requests:  requests,
		audit:     audit,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "revert_service").Logger(),
		tracer:    otel.Tracer("github.com/codearena/codearena-go-api/internal/service/revert"),
	}
}

func (s *revertService) Revert(ctx context.Context, actor Actor, req dto.RevertActionRequest) (dto.RevertActionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.revert")
	span.SetAttributes(attribute.Int64("governance.audit_id", int64(req.AuditID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.RevertActionResponse{}, validationError("audit id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionRevertActions, authz.Context{}) {
		return dto.RevertActionResponse{}, forbiddenError("only a super admin can revert actions")
	}

	original, err := s.auditLogs.GetByID(ctx, req.AuditID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevertActionResponse{}, notFoundError("audit entry not found")
		}
		return dto.RevertActionResponse{}, err
	}

	if !original.Reversible {
		return dto.RevertActionResponse{}, conflictError("action %s is not reversible", original.Action)
	}

	existing, err := s.auditLogs.FindRevertOf(ctx, original.ID)
	if err != nil {
		return dto.RevertActionResponse{}, err
	}
	if existing != nil {
		return dto.RevertActionResponse{}, conflictError("audit entry %d was already reverted by entry %d", original.ID, existing.ID)
	}

	handler, ok := s.handlerFor(models.AuditAction(original.Action))
	if !ok {
		return dto.RevertActionResponse{}, conflictError("no revert handler for action %s", original.Action)
	}

	// Handler failures are recorded in the revert entry, not raised: the
	// ledger must show the revert was attempted either way.
	result := handler(ctx, original)
	if !result.Success {
		s.logger.Error().Uint("audit_id", original.ID).Str("action", original.Action).Str("error", result.Error).Msg("revert handler failed")
	}

	originalID := original.ID
	revertEntry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditActionReverted,
		PerformedBy: actor.ID,
		TargetType:  original.TargetType,
		TargetID:    original.TargetID,
		RevertOfID:  &originalID,
		Metadata: models.RevertMetadata{
			OriginalAuditID:     original.ID,
			OriginalAction:      original.Action,
			OriginalPerformedBy: original.PerformedBy,
			RevertResult:        result,
		},
	})
	if err != nil {
		// A concurrent revert wins the unique revert_of_id index.
		if isUniqueViolation(err) {
			return dto.RevertActionResponse{}, conflictError("audit entry %d was already reverted", original.ID)
		}
		return dto.RevertActionResponse{}, err
	}

	s.logger.Info().Uint("audit_id", original.ID).Uint("revert_entry", revertEntry.ID).Bool("success", result.Success).Msg("action reverted")

	return dto.RevertActionResponse{
		RevertEntryID:   revertEntry.ID,
		OriginalAuditID: original.ID,
		OriginalAction:  original.Action,
		RevertResult:    result,
		RevertedAt:      revertEntry.CreatedAt,
	}, nil
}

type revertHandler func(ctx context.Context, original models.AuditLog) models.ActionResult

func (s *revertService) handlerFor(action models.AuditAction) (revertHandler, bool) {
	switch action {
	case models.AuditUserRoleChanged, models.AuditUserPromotedToAdmin, models.AuditUserDemoted:
		return s.revertRoleChange, true
	case models.AuditUserDeleted:
		return s.revertUserDeletion, true
	case models.AuditProblemApproved:
		return s.revertProblemApproval, true
	case models.AuditProblemRejected:
		return s.revertProblemRejection, true
	case models.AuditProblemSoftDeleted:
		return s.revertProblemSoftDeletion, true
	case models.AuditRequestApproved:
		return s.revertRequestApproval, true
	default:
		return nil, false
	}
}

// revertRoleChange restores the role recorded before the original change.
func (s *revertService) revertRoleChange(ctx context.Context, original models.AuditLog) models.ActionResult {
	var metadata models.RoleChangeMetadata
	if err := models.DecodeMetadata(original.Metadata, &metadata); err != nil {
		return models.ActionResult{Action: "role_restore_failed", TargetUserID: original.TargetID, Error: err.Error()}
	}
	if _, ok := authz.ParseRole(metadata.OldRole); !ok {
		return models.ActionResult{Action: "role_restore_failed", TargetUserID: original.TargetID, Error: "original entry has no valid previous role"}
	}

	return s.restoreRole(ctx, original.TargetID, metadata.OldRole)
}

func (s *revertService) restoreRole(ctx context.Context, userID uint, oldRole string) models.ActionResult {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.ActionResult{Action: "role_restore_failed", TargetUserID: userID, Error: err.Error()}
	}

	for attempt := 0; ; attempt++ {
		updated, err := s.users.UpdateRole(ctx, user.ID, oldRole, user.Version)
		if err != nil {
			return models.ActionResult{Action: "role_restore_failed", TargetUserID: userID, OldRole: user.Role, NewRole: oldRole, Error: err.Error()}
		}
		if updated {
			return models.ActionResult{Action: "role_restored", TargetUserID: userID, OldRole: user.Role, NewRole: oldRole, Success: true}
		}
		if attempt+1 >= casAttempts {
			return models.ActionResult{Action: "role_restore_failed", TargetUserID: userID, Error: "user was modified concurrently"}
		}
		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return models.ActionResult{Action: "role_restore_failed", TargetUserID: userID, Error: err.Error()}
		}
	}
}

// revertUserDeletion clears the soft-delete markers.
func (s *revertService) revertUserDeletion(ctx context.Context, original models.AuditLog) models.ActionResult {
	user, err := s.users.GetByID(ctx, original.TargetID)
	if err != nil {
		return models.ActionResult{Action: "user_restore_failed", TargetUserID: original.TargetID, Error: err.Error()}
	}
	if !user.IsDeleted {
		return models.ActionResult{Action: "user_restore_failed", TargetUserID: original.TargetID, Error: "user is not deleted"}
	}

	for attempt := 0; ; attempt++ {
		restored, err := s.users.SetDeleted(ctx, user.ID, false, nil, nil, user.Version)
		if err != nil {
			return models.ActionResult{Action: "user_restore_failed", TargetUserID: original.TargetID, Error: err.Error()}
		}
		if restored {
			return models.ActionResult{Action: "user_restored", TargetUserID: original.TargetID, Success: true}
		}
		if attempt+1 >= casAttempts {
			return models.ActionResult{Action: "user_restore_failed", TargetUserID: original.TargetID, Error: "user was modified concurrently"}
		}
		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return models.ActionResult{Action: "user_restore_failed", TargetUserID: original.TargetID, Error: err.Error()}
		}
	}
}

func (s *revertService) revertProblemApproval(ctx context.Context, original models.AuditLog) models.ActionResult {
	return s.setProblemApproval(ctx, original.TargetID, false, "problem_unapproved")
}

// revertProblemRejection re-approves the problem only if it was approved before
// the rejection; a problem rejected while still pending needs no restore.
func (s *revertService) revertProblemRejection(ctx context.Context, original models.AuditLog) models.ActionResult {
	var metadata models.ProblemModerationMetadata
	if err := models.DecodeMetadata(original.Metadata, &metadata); err != nil {
		return models.ActionResult{Action: "problem_restore_failed", Error: err.Error()}
	}

	if metadata.PreviousStatus != "approved" {
		return models.ActionResult{Action: "problem_rejection_reverted", Success: true}
	}
	return s.setProblemApproval(ctx, original.TargetID, true, "problem_reapproved")
}

func (s *revertService) revertProblemSoftDeletion(ctx context.Context, original models.AuditLog) models.ActionResult {
	return s.setProblemApproval(ctx, original.TargetID, true, "problem_restored")
}

func (s *revertService) setProblemApproval(ctx context.Context, problemID uint, approved bool, resultAction string) models.ActionResult {
	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		return models.ActionResult{Action: resultAction + "_failed", Error: err.Error()}
	}

	for attempt := 0; ; attempt++ {
		updated, err := s.problems.SetApproval(ctx, problem.ID, approved, s.clock(), problem.Version)
		if err != nil {
			return models.ActionResult{Action: resultAction + "_failed", Error: err.Error()}
		}
		if updated {
			return models.ActionResult{Action: resultAction, Success: true}
		}
		if attempt+1 >= casAttempts {
			return models.ActionResult{Action: resultAction + "_failed", Error: "problem was modified concurrently"}
		}
		problem, err = s.problems.GetByID(ctx, problem.ID)
		if err != nil {
			return models.ActionResult{Action: resultAction + "_failed", Error: err.Error()}
		}
	}
}

// revertRequestApproval returns the request to the pending queue. Only an
// executed role_changed result is undone here; approvals of demotion and
// promotion requests keep the applied role and are requeued as-is.
func (s *revertService) revertRequestApproval(ctx context.Context, original models.AuditLog) models.ActionResult {
	var metadata models.RequestReviewMetadata
	if err := models.DecodeMetadata(original.Metadata, &metadata); err != nil {
		return models.ActionResult{Action: "request_revert_failed", Error: err.Error()}
	}

	if metadata.ActionResult != nil && metadata.ActionResult.Success && metadata.ActionResult.Action == "role_changed" && metadata.ActionResult.OldRole != "" {
		restore := s.restoreRole(ctx, metadata.ActionResult.TargetUserID, metadata.ActionResult.OldRole)
		if !restore.Success {
			return models.ActionResult{Action: "request_revert_failed", TargetUserID: metadata.ActionResult.TargetUserID, Error: restore.Error}
		}
	}

	if err := s.requests.ResetToPending(ctx, original.TargetID); err != nil {
		return models.ActionResult{Action: "request_revert_failed", Error: err.Error()}
	}

	return models.ActionResult{Action: "request_reset_to_pending", Success: true}
}

func (s *revertService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// isUniqueViolation matches the duplicate-key errors the supported drivers
// return when the revert_of_id unique index rejects a second revert.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
