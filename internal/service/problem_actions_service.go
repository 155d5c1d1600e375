package service

import (
	"context"
	"errors"
	"sort"
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

// problemUpdateFields whitelists the content fields a dashboard update may patch.
var problemUpdateFields = map[string]struct{}{
	"title":      {},
	"difficulty": {},
}

// ProblemActionsService dispatches the governed problem moderation operations.
type ProblemActionsService interface {
	ApproveProblem(ctx context.Context, actor Actor, req dto.ApproveProblemRequest) (dto.ProblemActionResponse, error)
	RejectProblem(ctx context.Context, actor Actor, req dto.RejectProblemRequest) (dto.ProblemActionResponse, error)
	DeleteProblem(ctx context.Context, actor Actor, req dto.DeleteProblemRequest) (dto.ProblemActionResponse, error)
	UpdateProblem(ctx context.Context, actor Actor, req dto.UpdateProblemRequest) (dto.ProblemActionResponse, error)
}

type problemActionsService struct {
	problems  repository.ProblemRepository
	audit     AuditRecorder
	policy    *authz.Policy
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewProblemActionsService constructs the problem governance dispatcher.
func NewProblemActionsService(problems repository.ProblemRepository, audit AuditRecorder, policy *authz.Policy, validate *validator.Validate, logger zerolog.Logger) ProblemActionsService {
	return &problemActionsService{
		problems:  problems,
		audit:     audit,
		policy:    policy,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "problem_actions_service").Logger(),
		tracer:    otel.Tracer("github.com/codearena/codearena-go-api/internal/service/problem_actions"),
		now:       time.Now,
	}
}

func (s *problemActionsService) ApproveProblem(ctx context.Context, actor Actor, req dto.ApproveProblemRequest) (dto.ProblemActionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.problem.approve")
	span.SetAttributes(attribute.Int64("governance.problem_id", int64(req.ProblemID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ProblemActionResponse{}, validationError("problem id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionApproveProblem, authz.Context{}) {
		return dto.ProblemActionResponse{}, forbiddenError("insufficient permissions to approve problems")
	}

	problem, err := s.loadProblem(ctx, req.ProblemID)
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}
	if problem.IsApproved {
		return dto.ProblemActionResponse{}, conflictError("problem is already approved")
	}

	if err := s.setApproval(ctx, problem, true); err != nil {
		return dto.ProblemActionResponse{}, err
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditProblemApproved,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeProblem,
		TargetID:    problem.ID,
		Metadata: models.ProblemModerationMetadata{
			ProblemTitle:    problem.Title,
			ProblemAuthorID: problem.AuthorID,
			PreviousStatus:  "pending",
		},
	})
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	return dto.ProblemActionResponse{
		ProblemID:    problem.ID,
		Action:       string(models.AuditProblemApproved),
		NewStatus:    "approved",
		AuditEntryID: entry.ID,
	}, nil
}

func (s *problemActionsService) RejectProblem(ctx context.Context, actor Actor, req dto.RejectProblemRequest) (dto.ProblemActionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.problem.reject")
	span.SetAttributes(attribute.Int64("governance.problem_id", int64(req.ProblemID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ProblemActionResponse{}, validationError("problem id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionRejectProblem, authz.Context{}) {
		return dto.ProblemActionResponse{}, forbiddenError("insufficient permissions to reject problems")
	}

	problem, err := s.loadProblem(ctx, req.ProblemID)
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	// A non-approved problem whose modification timestamp is set has already
	// been moderated; rejecting it again is a conflict.
	if !problem.IsApproved && problem.LastModifiedAt != nil {
		return dto.ProblemActionResponse{}, conflictError("problem is already rejected or pending review")
	}

	previousStatus := "pending"
	if problem.IsApproved {
		previousStatus = "approved"
	}

	reason := s.sanitizer.Sanitize(req.Reason)
	if reason == "" {
		reason = "No reason provided"
	}

	if err := s.setApproval(ctx, problem, false); err != nil {
		return dto.ProblemActionResponse{}, err
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditProblemRejected,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeProblem,
		TargetID:    problem.ID,
		Metadata: models.ProblemModerationMetadata{
			ProblemTitle:    problem.Title,
			ProblemAuthorID: problem.AuthorID,
			PreviousStatus:  previousStatus,
			RejectionReason: reason,
		},
	})
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	return dto.ProblemActionResponse{
		ProblemID:    problem.ID,
		Action:       string(models.AuditProblemRejected),
		NewStatus:    "rejected",
		Reason:       reason,
		AuditEntryID: entry.ID,
	}, nil
}

func (s *problemActionsService) DeleteProblem(ctx context.Context, actor Actor, req dto.DeleteProblemRequest) (dto.ProblemActionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.problem.delete")
	span.SetAttributes(attribute.Int64("governance.problem_id", int64(req.ProblemID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ProblemActionResponse{}, validationError("problem id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionDeleteProblem, authz.Context{}) {
		return dto.ProblemActionResponse{}, forbiddenError("insufficient permissions to delete problems")
	}

	problem, err := s.loadProblem(ctx, req.ProblemID)
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	// Super admins delete permanently; everyone else unpublishes the problem
	// so the deletion stays reversible.
	if actor.Role == authz.RoleSuperAdmin {
		if err := s.problems.Delete(ctx, problem.ID); err != nil {
			return dto.ProblemActionResponse{}, err
		}

		entry, err := s.audit.Record(ctx, AuditEntry{
			Action:      models.AuditProblemHardDeleted,
			PerformedBy: actor.ID,
			TargetType:  models.TargetTypeProblem,
			TargetID:    problem.ID,
			Metadata: models.ProblemModerationMetadata{
				ProblemTitle:    problem.Title,
				ProblemAuthorID: problem.AuthorID,
				DeletionType:    "permanently_deleted",
			},
		})
		if err != nil {
			return dto.ProblemActionResponse{}, err
		}

		return dto.ProblemActionResponse{
			ProblemID:    problem.ID,
			Action:       string(models.AuditProblemHardDeleted),
			AuditEntryID: entry.ID,
		}, nil
	}

	if err := s.setApproval(ctx, problem, false); err != nil {
		return dto.ProblemActionResponse{}, err
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditProblemSoftDeleted,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeProblem,
		TargetID:    problem.ID,
		Metadata: models.ProblemModerationMetadata{
			ProblemTitle:    problem.Title,
			ProblemAuthorID: problem.AuthorID,
			DeletionType:    "soft_deleted",
		},
	})
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	return dto.ProblemActionResponse{
		ProblemID:    problem.ID,
		Action:       string(models.AuditProblemSoftDeleted),
		AuditEntryID: entry.ID,
	}, nil
}

func (s *problemActionsService) UpdateProblem(ctx context.Context, actor Actor, req dto.UpdateProblemRequest) (dto.ProblemActionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.problem.update")
	span.SetAttributes(attribute.Int64("governance.problem_id", int64(req.ProblemID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ProblemActionResponse{}, validationError("problem id and update data are required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionEditAnyProblem, authz.Context{}) {
		return dto.ProblemActionResponse{}, forbiddenError("insufficient permissions to edit problems")
	}

	patch := make(map[string]interface{}, len(req.Updates))
	fields := make([]string, 0, len(req.Updates))
	for key, value := range req.Updates {
		if _, ok := problemUpdateFields[key]; !ok {
			return dto.ProblemActionResponse{}, validationError("field %q cannot be updated", key)
		}
		patch[key] = value
		fields = append(fields, key)
	}
	sort.Strings(fields)

	problem, err := s.loadProblem(ctx, req.ProblemID)
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	for attempt := 0; ; attempt++ {
		updated, err := s.problems.UpdateFields(ctx, problem.ID, patch, s.now(), problem.Version)
		if err != nil {
			return dto.ProblemActionResponse{}, err
		}
		if updated {
			break
		}
		if attempt+1 >= casAttempts {
			return dto.ProblemActionResponse{}, conflictError("problem was modified concurrently, retry the update")
		}
		if problem, err = s.loadProblem(ctx, problem.ID); err != nil {
			return dto.ProblemActionResponse{}, err
		}
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditProblemUpdated,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeProblem,
		TargetID:    problem.ID,
		Metadata: models.ProblemModerationMetadata{
			ProblemTitle:    problem.Title,
			ProblemAuthorID: problem.AuthorID,
			UpdatedFields:   fields,
		},
	})
	if err != nil {
		return dto.ProblemActionResponse{}, err
	}

	return dto.ProblemActionResponse{
		ProblemID:    problem.ID,
		Action:       string(models.AuditProblemUpdated),
		AuditEntryID: entry.ID,
	}, nil
}

func (s *problemActionsService) loadProblem(ctx context.Context, id uint) (models.Problem, error) {
	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Problem{}, notFoundError("problem not found")
		}
		return models.Problem{}, err
	}
	return problem, nil
}

func (s *problemActionsService) setApproval(ctx context.Context, problem models.Problem, approved bool) error {
	for attempt := 0; ; attempt++ {
		updated, err := s.problems.SetApproval(ctx, problem.ID, approved, s.now(), problem.Version)
		if err != nil {
			return err
		}
		if updated {
			return nil
		}
		if attempt+1 >= casAttempts {
			return conflictError("problem was modified concurrently, retry the action")
		}
		problem, err = s.loadProblem(ctx, problem.ID)
		if err != nil {
			return err
		}
		if approved && problem.IsApproved {
			return conflictError("problem is already approved")
		}
	}
}
