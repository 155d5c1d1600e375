package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/models"
	"github.com/codearena/codearena-go-api/internal/repository"
)

// DashboardService aggregates governance counters for the admin dashboard.
type DashboardService interface {
	GetSummary(ctx context.Context, actor Actor) (dto.GovernanceSummaryResponse, error)
}

type dashboardService struct {
	users    repository.UserRepository
	problems repository.ProblemRepository
	requests repository.PendingRequestRepository
	audits   repository.AuditLogRepository
	policy   *authz.Policy
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService constructs the dashboard aggregator. The cache client
// may be nil, disabling caching.
func NewDashboardService(
	users repository.UserRepository,
	problems repository.ProblemRepository,
	requests repository.PendingRequestRepository,
	audits repository.AuditLogRepository,
	policy *authz.Policy,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) DashboardService {
	return &dashboardService{
		users:    users,
		problems: problems,
		requests: requests,
		audits:   audits,
		policy:   policy,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func (s *dashboardService) GetSummary(ctx context.Context, actor Actor) (dto.GovernanceSummaryResponse, error) {
	const cacheKey = "dashboard:governance:summary"
	tracer := otel.Tracer("github.com/codearena/codearena-go-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.summary")
	span.SetAttributes(attribute.String("dashboard.cache_key", cacheKey))
	defer span.End()

	if !s.policy.IsAllowed(actor.Role, authz.ActionViewAuditLogs, authz.Context{}) {
		return dto.GovernanceSummaryResponse{}, forbiddenError("insufficient permissions to view the governance dashboard")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.GovernanceSummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
			span.RecordError(err)
		}
	}

	usersByRole, err := s.users.CountByRole(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_users_failed")
		return dto.GovernanceSummaryResponse{}, err
	}

	approved, pending, err := s.problems.CountByApproval(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_problems_failed")
		return dto.GovernanceSummaryResponse{}, err
	}

	pendingRequests, err := s.requests.CountByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_requests_failed")
		return dto.GovernanceSummaryResponse{}, err
	}

	auditEntries, err := s.audits.Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_audit_entries_failed")
		return dto.GovernanceSummaryResponse{}, err
	}

	summary := dto.GovernanceSummaryResponse{
		UsersByRole:      usersByRole,
		ApprovedProblems: approved,
		PendingProblems:  pending,
		PendingRequests:  pendingRequests,
		AuditEntries:     auditEntries,
		GeneratedAt:      s.now(),
	}

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}
