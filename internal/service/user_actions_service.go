package service

import (
	"context"
	"errors"
	"fmt"
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

// casAttempts bounds the reload-and-retry loop around optimistic updates.
const casAttempts = 2

// UserActionsService dispatches the governed user-management operations:
// soft deletion, role assignment, promotion and demotion. Role mutations that
// need a second-party approval are recorded as pending requests instead of
// being applied directly.
type UserActionsService interface {
	DeleteUser(ctx context.Context, actor Actor, req dto.DeleteUserRequest) (dto.DeleteUserResponse, error)
	SetUserRole(ctx context.Context, actor Actor, req dto.SetUserRoleRequest) (dto.UserRoleChangeResponse, error)
	PromoteUser(ctx context.Context, actor Actor, req dto.PromoteUserRequest) (dto.UserRoleChangeResponse, error)
	DemoteUser(ctx context.Context, actor Actor, req dto.DemoteUserRequest) (dto.UserRoleChangeResponse, error)
}

type userActionsService struct {
	users     repository.UserRepository
	requests  repository.PendingRequestRepository
	audit     AuditRecorder
	policy    *authz.Policy
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewUserActionsService constructs the user governance dispatcher.
func NewUserActionsService(users repository.UserRepository, requests repository.PendingRequestRepository, audit AuditRecorder, policy *authz.Policy, validate *validator.Validate, logger zerolog.Logger) UserActionsService {
	return &userActionsService{
		users:     users,
		requests:  requests,
		audit:     audit,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "user_actions_service").Logger(),
		tracer:    otel.Tracer("github.com/codearena/codearena-go-api/internal/service/user_actions"),
		now:       time.Now,
	}
}

func (s *userActionsService) DeleteUser(ctx context.Context, actor Actor, req dto.DeleteUserRequest) (dto.DeleteUserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.user.delete")
	span.SetAttributes(
		attribute.Int64("governance.actor_id", int64(actor.ID)),
		attribute.Int64("governance.target_id", int64(req.TargetUserID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.DeleteUserResponse{}, validationError("target user id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionDeleteUser, authz.Context{TargetUserID: req.TargetUserID, CurrentUserID: actor.ID}) {
		return dto.DeleteUserResponse{}, forbiddenError("insufficient permissions to delete users")
	}
	if req.TargetUserID == actor.ID {
		return dto.DeleteUserResponse{}, validationError("you cannot delete yourself")
	}

	target, err := s.loadUser(ctx, req.TargetUserID)
	if err != nil {
		return dto.DeleteUserResponse{}, err
	}
	if target.IsDeleted {
		return dto.DeleteUserResponse{}, conflictError("user is already deleted")
	}
	if !s.outranks(actor, target) {
		return dto.DeleteUserResponse{}, forbiddenError("you can only delete users with lower roles than yours")
	}

	snapshot := snapshotUser(target)
	deletedBy := actor.ID
	deletedAt := s.now()

	for attempt := 0; ; attempt++ {
		updated, err := s.users.SetDeleted(ctx, target.ID, true, &deletedBy, &deletedAt, target.Version)
		if err != nil {
			return dto.DeleteUserResponse{}, err
		}
		if updated {
			break
		}
		if attempt+1 >= casAttempts {
			return dto.DeleteUserResponse{}, conflictError("user was modified concurrently, retry the deletion")
		}
		if target, err = s.loadUser(ctx, target.ID); err != nil {
			return dto.DeleteUserResponse{}, err
		}
		if target.IsDeleted {
			return dto.DeleteUserResponse{}, conflictError("user is already deleted")
		}
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditUserDeleted,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeUser,
		TargetID:    target.ID,
		Metadata:    models.UserDeletionMetadata{DeletedUser: snapshot, Reason: "Admin deletion"},
	})
	if err != nil {
		return dto.DeleteUserResponse{}, err
	}

	s.logger.Info().Uint("target_id", target.ID).Uint("actor_id", actor.ID).Msg("user soft deleted")

	return dto.DeleteUserResponse{
		DeletedUserID:   target.ID,
		DeletedUserInfo: snapshot,
		AuditEntryID:    entry.ID,
	}, nil
}

func (s *userActionsService) SetUserRole(ctx context.Context, actor Actor, req dto.SetUserRoleRequest) (dto.UserRoleChangeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "governance.user.set_role")
	span.SetAttributes(
		attribute.Int64("governance.actor_id", int64(actor.ID)),
		attribute.Int64("governance.target_id", int64(req.TargetUserID)),
		attribute.String("governance.new_role", req.NewRole),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.UserRoleChangeResponse{}, validationError("target user id and new role are required")
	}

	newRole, ok := authz.ParseRole(req.NewRole)
	if !ok {
		return dto.UserRoleChangeResponse{}, validationError("invalid role specified: %s", req.NewRole)
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionSetUserRole, authz.Context{TargetRole: newRole, TargetUserID: req.TargetUserID, CurrentUserID: actor.ID}) {
		return dto.UserRoleChangeResponse{}, forbiddenError("insufficient permissions to set user roles")
	}
	if req.TargetUserID == actor.ID {
		return dto.UserRoleChangeResponse{}, validationError("you cannot change your own role")
	}

	// An admin granting the admin role is not blocked by the ceiling; it is
	// deferred to a super admin for approval instead.
	deferToApproval := newRole == authz.RoleAdmin && actor.Role == authz.RoleAdmin

	// Assignment ceiling: a non-super-admin may only hand out roles strictly
	// below their own rank.
	if actor.Role != authz.RoleSuperAdmin && newRole.AtLeast(actor.Role) && !deferToApproval {
		return dto.UserRoleChangeResponse{}, forbiddenError("you can only assign roles lower than your own")
	}

	target, err := s.loadUser(ctx, req.TargetUserID)
	if err != nil {
		return dto.UserRoleChangeResponse{}, err
	}

	oldRole := target.Role
	snapshot := snapshotUser(target)

	if deferToApproval {
		request := models.PendingRequest{
			RequestType: models.RequestTypeRoleChange,
			RequestedBy: actor.ID,
			TargetID:    target.ID,
			TargetType:  models.TargetTypeUser,
			NewRole:     string(newRole),
			Reason:      fmt.Sprintf("Role change from %s to %s", oldRole, newRole),
			Status:      models.RequestStatusPending,
		}
		if err := s.requests.Create(ctx, &request); err != nil {
			return dto.UserRoleChangeResponse{}, err
		}

		entry, err := s.audit.Record(ctx, AuditEntry{
			Action:      models.AuditUserRoleChangeRequested,
			PerformedBy: actor.ID,
			TargetType:  models.TargetTypeUser,
			TargetID:    target.ID,
			Metadata: models.RoleChangeMetadata{
				TargetUser:       snapshot,
				OldRole:          oldRole,
				NewRole:          string(newRole),
				RequiresApproval: true,
			},
		})
		if err != nil {
			return dto.UserRoleChangeResponse{}, err
		}

		return dto.UserRoleChangeResponse{
			TargetUserID:     target.ID,
			OldRole:          oldRole,
			NewRole:          string(newRole),
			RequiresApproval: true,
			Status:           "pending_approval",
			RequestID:        request.ID,
			AuditEntryID:     entry.ID,
		}, nil
	}

	if err := s.applyRoleChange(ctx, target, string(newRole)); err != nil {
		return dto.UserRoleChangeResponse{}, err
	}

	entry, err := s.audit.Record(ctx, AuditEntry{
		Action:      models.AuditUserRoleChanged,
		PerformedBy: actor.ID,
		TargetType:  models.TargetTypeUser,
		TargetID:    target.ID,
		Metadata: models.RoleChangeMetadata{
			TargetUser: snapshot,
			OldRole:    oldRole,
			NewRole:    string(newRole),
		},
	})
	if err != nil {
		return dto.UserRoleChangeResponse{}, err
	}

	s.logger.Info().Uint("target_id", target.ID).Str("old_role", oldRole).Str("new_role", string(newRole)).Msg("user role changed")

	return dto.UserRoleChangeResponse{
		TargetUserID: target.ID,
		OldRole:      oldRole,
		NewRole:      string(newRole),
		Status:       "completed",
		AuditEntryID: entry.ID,
	}, nil
}

func (s *userActionsService) PromoteUser(ctx context.Context, actor Actor, req dto.PromoteUserRequest) (dto.UserRoleChangeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserRoleChangeResponse{}, validationError("target user id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionPromoteUser, authz.Context{TargetUserID: req.TargetUserID, CurrentUserID: actor.ID}) {
		return dto.UserRoleChangeResponse{}, forbiddenError("insufficient permissions to promote users")
	}

	target, err := s.loadUser(ctx, req.TargetUserID)
	if err != nil {
		return dto.UserRoleChangeResponse{}, err
	}

	currentRole, ok := authz.ParseRole(target.Role)
	if !ok {
		return dto.UserRoleChangeResponse{}, conflictError("cannot promote from invalid role %s", target.Role)
	}
	nextRole, ok := currentRole.Next()
	if !ok {
		return dto.UserRoleChangeResponse{}, conflictError("cannot promote from %s: already at highest level", currentRole)
	}

	return s.SetUserRole(ctx, actor, dto.SetUserRoleRequest{TargetUserID: target.ID, NewRole: string(nextRole)})
}

func (s *userActionsService) DemoteUser(ctx context.Context, actor Actor, req dto.DemoteUserRequest) (dto.UserRoleChangeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserRoleChangeResponse{}, validationError("target user id is required")
	}
	if !s.policy.IsAllowed(actor.Role, authz.ActionDemoteUser, authz.Context{TargetUserID: req.TargetUserID, CurrentUserID: actor.ID}) {
		return dto.UserRoleChangeResponse{}, forbiddenError("insufficient permissions to demote users")
	}

	target, err := s.loadUser(ctx, req.TargetUserID)
	if err != nil {
		return dto.UserRoleChangeResponse{}, err
	}

	currentRole, ok := authz.ParseRole(target.Role)
	if !ok {
		return dto.UserRoleChangeResponse{}, conflictError("cannot demote from invalid role %s", target.Role)
	}
	previousRole, ok := currentRole.Previous()
	if !ok {
		return dto.UserRoleChangeResponse{}, conflictError("cannot demote from %s: already at lowest level", currentRole)
	}

	// Peer demotion: an admin demoting another admin needs a super admin to
	// sign off. Unlike promotion, the trigger is the target's current role.
	if currentRole == authz.RoleAdmin && actor.Role == authz.RoleAdmin {
		request := models.PendingRequest{
			RequestType: models.RequestTypeDemotion,
			RequestedBy: actor.ID,
			TargetID:    target.ID,
			TargetType:  models.TargetTypeUser,
			NewRole:     string(previousRole),
			Reason:      fmt.Sprintf("Demotion request from %s to %s", currentRole, previousRole),
			Status:      models.RequestStatusPending,
		}
		if err := s.requests.Create(ctx, &request); err != nil {
			return dto.UserRoleChangeResponse{}, err
		}

		entry, err := s.audit.Record(ctx, AuditEntry{
			Action:      models.AuditUserDemotionRequested,
			PerformedBy: actor.ID,
			TargetType:  models.TargetTypeUser,
			TargetID:    target.ID,
			Metadata: models.RoleChangeMetadata{
				TargetUser:       snapshotUser(target),
				OldRole:          string(currentRole),
				NewRole:          string(previousRole),
				RequiresApproval: true,
			},
		})
		if err != nil {
			return dto.UserRoleChangeResponse{}, err
		}

		return dto.UserRoleChangeResponse{
			TargetUserID:     target.ID,
			OldRole:          string(currentRole),
			NewRole:          string(previousRole),
			RequiresApproval: true,
			Status:           "pending_approval",
			RequestID:        request.ID,
			AuditEntryID:     entry.ID,
		}, nil
	}

	return s.SetUserRole(ctx, actor, dto.SetUserRoleRequest{TargetUserID: target.ID, NewRole: string(previousRole)})
}

func (s *userActionsService) loadUser(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, notFoundError("user not found")
		}
		return models.User{}, err
	}
	return user, nil
}

// applyRoleChange performs the optimistic role update, reloading once when a
// concurrent writer bumped the version first.
func (s *userActionsService) applyRoleChange(ctx context.Context, target models.User, newRole string) error {
	for attempt := 0; ; attempt++ {
		updated, err := s.users.UpdateRole(ctx, target.ID, newRole, target.Version)
		if err != nil {
			return err
		}
		if updated {
			return nil
		}
		if attempt+1 >= casAttempts {
			return conflictError("user was modified concurrently, retry the role change")
		}
		target, err = s.loadUser(ctx, target.ID)
		if err != nil {
			return err
		}
	}
}

// outranks reports whether the actor may act on the target. Super admins may
// act on anyone; everyone else only on strictly lower-ranked users.
func (s *userActionsService) outranks(actor Actor, target models.User) bool {
	if actor.Role == authz.RoleSuperAdmin {
		return true
	}
	actorRank, ok := actor.Role.Rank()
	if !ok {
		return false
	}
	targetRole, ok := authz.ParseRole(target.Role)
	if !ok {
		return true
	}
	targetRank, _ := targetRole.Rank()
	return actorRank > targetRank
}

func snapshotUser(user models.User) models.UserSnapshot {
	return models.UserSnapshot{
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Email:          user.Email,
		Role:           user.Role,
		SolvedCount:    user.SolvedCount,
		AttemptedCount: user.AttemptedCount,
	}
}
