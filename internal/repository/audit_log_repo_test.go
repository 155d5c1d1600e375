package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Problem{}, &models.AuditLog{}, &models.PendingRequest{}))
	return db
}

func TestAuditLogRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	old := models.AuditLog{
		Action:      string(models.AuditProblemApproved),
		PerformedBy: 1,
		TargetType:  models.TargetTypeProblem,
		TargetID:    10,
		Reversible:  true,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	recent := models.AuditLog{
		Action:      string(models.AuditUserRoleChanged),
		PerformedBy: 2,
		TargetType:  models.TargetTypeUser,
		TargetID:    20,
		Reversible:  true,
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, &old))
	require.NoError(t, repo.Create(ctx, &recent))

	entries, total, err := repo.List(ctx, AuditLogFilter{TargetType: models.TargetTypeUser, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	require.Equal(t, string(models.AuditUserRoleChanged), entries[0].Action)

	entries, total, err = repo.List(ctx, AuditLogFilter{Action: "role_changed", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, entries, 1)

	from := time.Now().Add(-2 * time.Hour)
	entries, total, err = repo.List(ctx, AuditLogFilter{DateFrom: &from, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	entries, total, err = repo.List(ctx, AuditLogFilter{PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, string(models.AuditUserRoleChanged), entries[0].Action, "expected newest entry first")
}

func TestAuditLogRepositoryFindRevertOf(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	original := models.AuditLog{
		Action:      string(models.AuditProblemApproved),
		PerformedBy: 1,
		TargetType:  models.TargetTypeProblem,
		TargetID:    5,
		Reversible:  true,
	}
	require.NoError(t, repo.Create(ctx, &original))

	found, err := repo.FindRevertOf(ctx, original.ID)
	require.NoError(t, err)
	require.Nil(t, found)

	revert := models.AuditLog{
		Action:      string(models.AuditActionReverted),
		PerformedBy: 9,
		TargetType:  models.TargetTypeProblem,
		TargetID:    5,
		RevertOfID:  &original.ID,
	}
	require.NoError(t, repo.Create(ctx, &revert))

	found, err = repo.FindRevertOf(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, revert.ID, found.ID)
}

func TestAuditLogRepositoryRevertOfUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	original := models.AuditLog{
		Action:      string(models.AuditUserRoleChanged),
		PerformedBy: 1,
		TargetType:  models.TargetTypeUser,
		TargetID:    3,
		Reversible:  true,
	}
	require.NoError(t, repo.Create(ctx, &original))

	first := models.AuditLog{
		Action:      string(models.AuditActionReverted),
		PerformedBy: 9,
		TargetType:  models.TargetTypeUser,
		TargetID:    3,
		RevertOfID:  &original.ID,
	}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.AuditLog{
		Action:      string(models.AuditActionReverted),
		PerformedBy: 9,
		TargetType:  models.TargetTypeUser,
		TargetID:    3,
		RevertOfID:  &original.ID,
	}
	require.Error(t, repo.Create(ctx, &second), "a ledger entry may be reverted at most once")
}
