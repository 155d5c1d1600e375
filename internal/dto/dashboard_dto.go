package dto

import "time"

// GovernanceSummaryResponse aggregates the governance dashboard counters.
type GovernanceSummaryResponse struct {
	UsersByRole      map[string]int64 `json:"users_by_role"`
	ApprovedProblems int64            `json:"approved_problems"`
	PendingProblems  int64            `json:"pending_problems"`
	PendingRequests  int64            `json:"pending_requests"`
	AuditEntries     int64            `json:"audit_entries"`
	GeneratedAt      time.Time        `json:"generated_at"`
	CacheHit         bool             `json:"cache_hit"`
}
