package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/models"
)

func TestRecordStampsReversibilityFromActionKind(t *testing.T) {
	env := newGovernanceEnv(t)

	reversible, err := env.audit.Record(context.Background(), AuditEntry{
		Action:      models.AuditUserRoleChanged,
		PerformedBy: 1,
		TargetType:  models.TargetTypeUser,
		TargetID:    2,
		Metadata:    models.RoleChangeMetadata{OldRole: "user", NewRole: "problem_setter"},
	})
	require.NoError(t, err)
	require.True(t, reversible.Reversible)

	irreversible, err := env.audit.Record(context.Background(), AuditEntry{
		Action:      models.AuditProblemHardDeleted,
		PerformedBy: 1,
		TargetType:  models.TargetTypeProblem,
		TargetID:    3,
		Metadata:    models.ProblemModerationMetadata{ProblemTitle: "Gone"},
	})
	require.NoError(t, err)
	require.False(t, irreversible.Reversible)

	_, err = env.audit.Record(context.Background(), AuditEntry{PerformedBy: 1, TargetType: models.TargetTypeUser})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListAuditLogsFiltersAndGates(t *testing.T) {
	env := newGovernanceEnv(t)

	for i := 0; i < 3; i++ {
		_, err := env.audit.Record(context.Background(), AuditEntry{
			Action:      models.AuditUserRoleChanged,
			PerformedBy: 7,
			TargetType:  models.TargetTypeUser,
			TargetID:    uint(10 + i),
			Metadata:    models.RoleChangeMetadata{OldRole: "user", NewRole: "problem_setter"},
		})
		require.NoError(t, err)
	}
	_, err := env.audit.Record(context.Background(), AuditEntry{
		Action:      models.AuditProblemApproved,
		PerformedBy: 8,
		TargetType:  models.TargetTypeProblem,
		TargetID:    1,
		Metadata:    models.ProblemModerationMetadata{ProblemTitle: "Graphs"},
	})
	require.NoError(t, err)

	superAdmin := Actor{ID: 1, Role: authz.RoleSuperAdmin}
	result, err := env.audit.List(context.Background(), superAdmin, dto.AuditLogListRequest{Action: "role_changed"})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	require.Equal(t, int64(3), result.Pagination.TotalItems)

	result, err = env.audit.List(context.Background(), superAdmin, dto.AuditLogListRequest{TargetType: models.TargetTypeProblem})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	result, err = env.audit.List(context.Background(), superAdmin, dto.AuditLogListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, int64(4), result.Pagination.TotalItems)
	require.Equal(t, 2, result.Pagination.TotalPages)

	_, err = env.audit.List(context.Background(), Actor{ID: 2, Role: authz.RoleProblemSetter}, dto.AuditLogListRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}
