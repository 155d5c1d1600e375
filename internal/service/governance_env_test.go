package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/models"
	"github.com/codearena/codearena-go-api/internal/repository"
)

// governanceEnv wires the governance services against an in-memory database
// the same way main does against postgres.
type governanceEnv struct {
	db        *gorm.DB
	users     repository.UserRepository
	problems  repository.ProblemRepository
	requests  repository.PendingRequestRepository
	auditLogs repository.AuditLogRepository
	policy    *authz.Policy
	audit     AuditService
}

func newGovernanceEnv(t *testing.T) *governanceEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Problem{}, &models.PendingRequest{}, &models.AuditLog{}))

	policy := authz.NewPolicy(authz.NewCatalog())
	auditLogs := repository.NewAuditLogRepository(db)

	return &governanceEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		problems:  repository.NewProblemRepository(db),
		requests:  repository.NewPendingRequestRepository(db),
		auditLogs: auditLogs,
		policy:    policy,
		audit:     NewAuditService(auditLogs, policy, nil, zerolog.Nop()),
	}
}

func (e *governanceEnv) userService() UserActionsService {
	return NewUserActionsService(e.users, e.requests, e.audit, e.policy, validator.New(), zerolog.Nop())
}

func (e *governanceEnv) problemService() ProblemActionsService {
	return NewProblemActionsService(e.problems, e.audit, e.policy, validator.New(), zerolog.Nop())
}

func (e *governanceEnv) requestService() RequestService {
	return NewRequestService(e.requests, e.users, e.audit, e.policy, validator.New(), zerolog.Nop())
}

func (e *governanceEnv) revertService() RevertService {
	return NewRevertService(e.auditLogs, e.users, e.problems, e.requests, e.audit, e.policy, validator.New(), zerolog.Nop())
}

func (e *governanceEnv) seedUser(t *testing.T, role string) models.User {
	t.Helper()
	user := models.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     fmt.Sprintf("%s-%d@codearena.dev", role, seedSequence(t)),
		Role:      role,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *governanceEnv) seedProblem(t *testing.T, approved bool) models.Problem {
	t.Helper()
	problem := models.Problem{
		Title:      fmt.Sprintf("Problem %d", seedSequence(t)),
		AuthorID:   1,
		Difficulty: "medium",
		IsApproved: approved,
	}
	require.NoError(t, e.db.Create(&problem).Error)
	return problem
}

func (e *governanceEnv) auditCount(t *testing.T) int64 {
	t.Helper()
	var total int64
	require.NoError(t, e.db.Model(&models.AuditLog{}).Count(&total).Error)
	return total
}

func (e *governanceEnv) auditsByAction(t *testing.T, action models.AuditAction) []models.AuditLog {
	t.Helper()
	var entries []models.AuditLog
	require.NoError(t, e.db.Where("action = ?", string(action)).Find(&entries).Error)
	return entries
}

var seedCounters = map[string]int{}

func seedSequence(t *testing.T) int {
	seedCounters[t.Name()]++
	return seedCounters[t.Name()]
}
