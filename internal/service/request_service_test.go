package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/models"
)

func seedRoleChangeRequest(t *testing.T, env *governanceEnv, requestedBy, targetID uint, newRole string) models.PendingRequest {
	t.Helper()
	request := models.PendingRequest{
		RequestType: models.RequestTypeRoleChange,
		RequestedBy: requestedBy,
		TargetID:    targetID,
		TargetType:  models.TargetTypeUser,
		NewRole:     newRole,
		Reason:      "Role change from problem_setter to admin",
		Status:      models.RequestStatusPending,
	}
	require.NoError(t, env.requests.Create(context.Background(), &request))
	return request
}

func TestApproveRoleChangeRequestExecutesAndRecordsTwice(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))
	request := seedRoleChangeRequest(t, env, admin.ID, target.ID, string(authz.RoleAdmin))

	result, err := service.Approve(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.ApprovePendingRequest{RequestID: request.ID})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, result.Status)
	require.NotNil(t, result.ActionResult)
	require.True(t, result.ActionResult.Success)
	require.Equal(t, string(authz.RoleProblemSetter), result.ActionResult.OldRole)
	require.Equal(t, string(authz.RoleAdmin), result.ActionResult.NewRole)

	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleAdmin), stored.Role)

	reviewed, err := env.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, superAdmin.ID, *reviewed.ReviewedBy)

	approvals := env.auditsByAction(t, models.AuditRequestApproved)
	require.Len(t, approvals, 1)
	require.True(t, approvals[0].Reversible)

	// The approval entry is the revert point; its executed companion never
	// carries a second one.
	executed := env.auditsByAction(t, models.ExecutedAction(models.RequestTypeRoleChange))
	require.Len(t, executed, 1)
	require.False(t, executed[0].Reversible)
}

func TestApproveRequestFailureIsRecordedNotRaised(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	request := seedRoleChangeRequest(t, env, admin.ID, 9999, string(authz.RoleAdmin))

	result, err := service.Approve(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.ApprovePendingRequest{RequestID: request.ID})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, result.Status)
	require.NotNil(t, result.ActionResult)
	require.False(t, result.ActionResult.Success)
	require.NotEmpty(t, result.ActionResult.Error)

	// The review completes and both ledger entries are still written.
	reviewed, err := env.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, reviewed.Status)
	require.Len(t, env.auditsByAction(t, models.AuditRequestApproved), 1)
	require.Len(t, env.auditsByAction(t, models.ExecutedAction(models.RequestTypeRoleChange)), 1)
}

func TestApproveDemotionRequestUsesTargetCurrentRole(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	peer := env.seedUser(t, string(authz.RoleAdmin))

	request := models.PendingRequest{
		RequestType: models.RequestTypeDemotion,
		RequestedBy: admin.ID,
		TargetID:    peer.ID,
		TargetType:  models.TargetTypeUser,
		Reason:      "Demotion request from admin to problem_setter",
		Status:      models.RequestStatusPending,
	}
	require.NoError(t, env.requests.Create(context.Background(), &request))

	result, err := service.Approve(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.ApprovePendingRequest{RequestID: request.ID})
	require.NoError(t, err)
	require.True(t, result.ActionResult.Success)
	require.Equal(t, "user_demoted", result.ActionResult.Action)

	stored, err := env.users.GetByID(context.Background(), peer.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleProblemSetter), stored.Role)
}

func TestApproveRequestExactlyOnce(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))
	request := seedRoleChangeRequest(t, env, admin.ID, target.ID, string(authz.RoleAdmin))

	actor := Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}
	_, err := service.Approve(context.Background(), actor, dto.ApprovePendingRequest{RequestID: request.ID})
	require.NoError(t, err)

	_, err = service.Approve(context.Background(), actor, dto.ApprovePendingRequest{RequestID: request.ID})
	require.ErrorIs(t, err, ErrConflict)
	_, err = service.Reject(context.Background(), actor, dto.RejectPendingRequest{RequestID: request.ID})
	require.ErrorIs(t, err, ErrConflict)

	require.Len(t, env.auditsByAction(t, models.ExecutedAction(models.RequestTypeRoleChange)), 1)
}

func TestApproveRequestRequiresSuperAdmin(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))
	request := seedRoleChangeRequest(t, env, admin.ID, target.ID, string(authz.RoleAdmin))

	_, err := service.Approve(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.ApprovePendingRequest{RequestID: request.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = service.Approve(context.Background(), Actor{ID: admin.ID, Role: authz.RoleSuperAdmin}, dto.ApprovePendingRequest{RequestID: 4242})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRejectRequestAppendsReasonAndRecords(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))
	request := seedRoleChangeRequest(t, env, admin.ID, target.ID, string(authz.RoleAdmin))

	result, err := service.Reject(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.RejectPendingRequest{
		RequestID: request.ID,
		Reason:    "<script>alert(1)</script>insufficient tenure",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, result.Status)
	require.Equal(t, "insufficient tenure", result.Reason)
	require.Nil(t, result.ActionResult)

	// The target role never moves on rejection.
	stored, err := env.users.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleProblemSetter), stored.Role)

	reviewed, err := env.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, reviewed.Status)
	require.Contains(t, reviewed.Reason, "REJECTION REASON: insufficient tenure")

	entries := env.auditsByAction(t, models.AuditRequestRejected)
	require.Len(t, entries, 1)
	require.False(t, entries[0].Reversible)
}

func TestRequestPromotionFilesPendingAdminPromotion(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	setter := env.seedUser(t, string(authz.RoleProblemSetter))

	result, err := service.RequestPromotion(context.Background(), Actor{ID: setter.ID, Role: authz.RoleProblemSetter}, dto.RequestPromotionRequest{
		Reason: "<b>Two years</b> of problem setting",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestTypeAdminPromotion, result.RequestType)
	require.Equal(t, models.RequestStatusPending, result.Status)
	require.Equal(t, setter.ID, result.RequestedBy)
	require.Equal(t, setter.ID, result.TargetID)
	require.Equal(t, string(authz.RoleAdmin), result.NewRole)
	require.Equal(t, "Two years of problem setting", result.Reason)

	// A second request while the first is still pending is rejected.
	_, err = service.RequestPromotion(context.Background(), Actor{ID: setter.ID, Role: authz.RoleProblemSetter}, dto.RequestPromotionRequest{})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRequestPromotionEnforcesCeiling(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	admin := env.seedUser(t, string(authz.RoleAdmin))
	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))

	_, err := service.RequestPromotion(context.Background(), Actor{ID: admin.ID, Role: authz.RoleAdmin}, dto.RequestPromotionRequest{})
	require.ErrorIs(t, err, ErrConflict)

	_, err = service.RequestPromotion(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.RequestPromotionRequest{})
	require.ErrorIs(t, err, ErrConflict)
}

func TestApprovePromotionRequestGrantsAdmin(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	setter := env.seedUser(t, string(authz.RoleProblemSetter))

	filed, err := service.RequestPromotion(context.Background(), Actor{ID: setter.ID, Role: authz.RoleProblemSetter}, dto.RequestPromotionRequest{})
	require.NoError(t, err)

	result, err := service.Approve(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.ApprovePendingRequest{RequestID: filed.ID})
	require.NoError(t, err)
	require.True(t, result.ActionResult.Success)
	require.Equal(t, "user_promoted_to_admin", result.ActionResult.Action)

	stored, err := env.users.GetByID(context.Background(), setter.ID)
	require.NoError(t, err)
	require.Equal(t, string(authz.RoleAdmin), stored.Role)

	require.Len(t, env.auditsByAction(t, models.ExecutedAction(models.RequestTypeAdminPromotion)), 1)
}

func TestListPendingRequestsFiltersAndGates(t *testing.T) {
	env := newGovernanceEnv(t)
	service := env.requestService()

	superAdmin := env.seedUser(t, string(authz.RoleSuperAdmin))
	admin := env.seedUser(t, string(authz.RoleAdmin))
	target := env.seedUser(t, string(authz.RoleProblemSetter))
	seedRoleChangeRequest(t, env, admin.ID, target.ID, string(authz.RoleAdmin))

	result, err := service.List(context.Background(), Actor{ID: superAdmin.ID, Role: authz.RoleSuperAdmin}, dto.PendingRequestListRequest{
		Status: models.RequestStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, int64(1), result.Pagination.TotalItems)

	_, err = service.List(context.Background(), Actor{ID: target.ID, Role: authz.RoleProblemSetter}, dto.PendingRequestListRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}
