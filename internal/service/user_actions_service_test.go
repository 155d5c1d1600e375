package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/models"
)

func TestPromoteUserClimbsHierarchyAndStopsAtTop(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	target := env.seedUser(t, string(authz.RoleUser))
	actor := Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}

	expected := []string{"problem_setter", "admin", "super_admin"}
	for _, wantRole := range expected {
		result, err := service.PromoteUser(context.Background(), actor, dto.PromoteUserRequest{TargetUserID: target.ID})
		require.NoError(t, err)
		require.Equal(t, wantRole, result.NewRole)
		require.Equal(t, "completed", result.Status)
	}

	_, err := service.PromoteUser(context.Background(), actor, dto.PromoteUserRequest{TargetUserID: target.ID})
	require.ErrorIs(t, err, ErrConflict)

	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleSuperAdmin), stored.Role)
	require.Len(t, env.auditsByAction(t, models.AuditUserRoleChanged), 3)
}

func TestSetUserRoleAdminGrantingAdminIsDeferred(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))

	result, err := service.SetUserRole(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.SetUserRoleRequest{
		TargetUserID: target.ID,
		NewRole:      string(authz.RoleAdmin),
	})
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "pending_approval", result.Status)
	require.NotZero(t, result.RequestID)

	// The role must not move until a super admin approves.
	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleProblemSetter), stored.Role)

	request, err := env.requests.GetByID(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestTypeRoleChange, request.RequestType)
	require.Equal(t, string(authz.RoleAdmin), request.NewRole)
	require.Equal(t, models.RequestStatusPending, request.Status)

	entries := env.auditsByAction(t, models.AuditUserRoleChangeRequested)
	require.Len(t, entries, 1)
	require.False(t, entries[0].Reversible)
}

func TestPromoteSetterByAdminIsDeferred(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))

	result, err := service.PromoteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.PromoteUserRequest{TargetUserID: target.ID})
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "pending_approval", result.Status)
	require.Equal(t, string(authz.RoleAdmin), result.NewRole)

	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleProblemSetter), stored.Role)

	request, err := env.requests.GetByID(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestTypeRoleChange, request.RequestType)
	require.Equal(t, models.RequestStatusPending, request.Status)
}

func TestSetUserRoleSuperAdminGrantsAdminDirectly(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))

	result, err := service.SetUserRole(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.SetUserRoleRequest{
		TargetUserID: target.ID,
		NewRole:      string(authz.RoleAdmin),
	})
	require.NoError(t, err)
	require.False(t, result.RequiresApproval)
	require.Equal(t, "completed", result.Status)

	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleAdmin), stored.Role)
}

func TestSetUserRoleEnforcesAssignmentCeiling(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleUser))

	_, err := service.SetUserRole(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.SetUserRoleRequest{
		TargetUserID: target.ID,
		NewRole:      string(authz.RoleSuperAdmin),
	})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = service.SetUserRole(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.SetUserRoleRequest{
		TargetUserID: target.ID,
		NewRole:      "moderator",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetUserRoleRejectsSelfChange(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))

	_, err := service.SetUserRole(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.SetUserRoleRequest{
		TargetUserID: superAdmin.ID,
		NewRole:      string(authz.RoleAdmin),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDemoteAdminByPeerAdminIsDeferred(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	peer := env.seedUser(t, string(authz.RoleAdmin))

	result, err := service.DemoteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.DemoteUserRequest{TargetUserID: peer.ID})
	require.NoError(t, err)
	require.True(t, result.RequiresApproval)
	require.Equal(t, "pending_approval", result.Status)

	stored, err := env.users.GetByID(context.Background(), peer.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleAdmin), stored.Role)

	request, err := env.requests.GetByID(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestTypeDemotion, request.RequestType)
	require.Len(t, env.auditsByAction(t, models.AuditUserDemotionRequested), 1)
}

func TestDemoteUserAtLowestLevelConflicts(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	target := env.seedUser(t, string(authz.RoleUser))

	_, err := service.DemoteUser(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.DemoteUserRequest{TargetUserID: target.ID})
	require.ErrorIs(t, err, ErrConflict)
	require.Zero(t, env.auditCount(t))
}

func TestDeleteUserSoftDeletesAndRecords(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleUser))

	result, err := service.DeleteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.DeleteUserRequest{TargetUserID: target.ID})
	require.NoError(t, err)
	require.Equal(t, target.ID, result.DeletedUserID)
	require.Equal(t, target.Email, result.DeletedUserInfo.Email)

	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.NotNil(t, stored.DeletedBy)
	require.Equal(t, admin.ID, *stored.DeletedBy)

	entries := env.auditsByAction(t, models.AuditUserDeleted)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Reversible)

	_, err = service.DeleteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.DeleteUserRequest{TargetUserID: target.ID})
	require.ErrorIs(t, err, ErrConflict)
}

func TestDeleteUserRequiresHigherRank(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.userService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	peer := env.seedUser(t, string(authz.RoleAdmin))

	_, err := service.DeleteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.DeleteUserRequest{TargetUserID: peer.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = service.DeleteUser(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.DeleteUserRequest{TargetUserID: admin.ID})
	require.ErrorIs(t, err, ErrValidation)

	setter := env.seedUser(t, string(authz.RoleProblemSetter))
	_, err = service.DeleteUser(context.Background(), Actor{ID: setter.ID, Role: authz.RoleProblemSetter}, dto.DeleteUserRequest{TargetUserID: admin.ID})
	require.ErrorIs(t, err, ErrForbidden)
}
