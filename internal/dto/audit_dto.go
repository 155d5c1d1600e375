package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/codearena/codearena-go-api/internal/models"
)

// AuditLogListRequest defines filters for ledger queries.
type AuditLogListRequest struct {
	Page        int
	PageSize    int
	Action      string
	TargetType  string
	PerformedBy uint
	DateFrom    *time.Time
	DateTo      *time.Time
	SortAsc     bool
}

// AuditLogResponse serializes a ledger entry.
type AuditLogResponse struct {
	ID          uint              `json:"id"`
	Action      string            `json:"action"`
	PerformedBy uint              `json:"performed_by"`
	TargetType  string            `json:"target_type"`
	TargetID    uint              `json:"target_id"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	Reversible  bool              `json:"reversible"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewAuditLogResponse maps a ledger entry model to its response shape.
func NewAuditLogResponse(entry models.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:          entry.ID,
		Action:      entry.Action,
		PerformedBy: entry.PerformedBy,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Metadata:    entry.Metadata,
		Reversible:  entry.Reversible,
		CreatedAt:   entry.CreatedAt,
	}
}

// AuditLogListResponse wraps a paginated ledger query.
type AuditLogListResponse struct {
	Items      []AuditLogResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// RevertActionRequest asks for a previously recorded action to be undone.
type RevertActionRequest struct {
	AuditID uint `json:"audit_id" validate:"required"`
}

// RevertActionResponse reports the outcome of a revert. RevertResult carries
// the undo handler outcome even when the underlying mutation failed; callers
// must check its success flag.
type RevertActionResponse struct {
	RevertEntryID   uint                `json:"revert_entry_id"`
	OriginalAuditID uint                `json:"original_audit_id"`
	OriginalAction  string              `json:"original_action"`
	RevertResult    models.ActionResult `json:"revert_result"`
	RevertedAt      time.Time           `json:"reverted_at"`
}
