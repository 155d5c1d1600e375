package dto

import (
	"time"

	"github.com/codearena/codearena-go-api/internal/models"
)

// DeleteUserRequest targets a user for soft deletion.
type DeleteUserRequest struct {
	TargetUserID uint `json:"target_user_id" validate:"required"`
}

// SetUserRoleRequest assigns a new role to a user.
type SetUserRoleRequest struct {
	TargetUserID uint   `json:"target_user_id" validate:"required"`
	NewRole      string `json:"new_role" validate:"required"`
}

// PromoteUserRequest moves a user one step up the hierarchy.
type PromoteUserRequest struct {
	TargetUserID uint `json:"target_user_id" validate:"required"`
}

// DemoteUserRequest moves a user one step down the hierarchy.
type DemoteUserRequest struct {
	TargetUserID uint `json:"target_user_id" validate:"required"`
}

// UserRoleChangeResponse reports a direct or deferred role change.
type UserRoleChangeResponse struct {
	TargetUserID     uint   `json:"target_user_id"`
	OldRole          string `json:"old_role"`
	NewRole          string `json:"new_role"`
	RequiresApproval bool   `json:"requires_approval"`
	Status           string `json:"status"`
	RequestID        uint   `json:"request_id,omitempty"`
	AuditEntryID     uint   `json:"audit_entry_id"`
}

// DeleteUserResponse reports a completed soft deletion.
type DeleteUserResponse struct {
	DeletedUserID   uint                `json:"deleted_user_id"`
	DeletedUserInfo models.UserSnapshot `json:"deleted_user_info"`
	AuditEntryID    uint                `json:"audit_entry_id"`
}

// ApproveProblemRequest marks a problem as approved.
type ApproveProblemRequest struct {
	ProblemID uint `json:"problem_id" validate:"required"`
}

// RejectProblemRequest marks a problem as rejected with an optional reason.
type RejectProblemRequest struct {
	ProblemID uint   `json:"problem_id" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=2000"`
}

// DeleteProblemRequest removes a problem; depth depends on the actor's role.
type DeleteProblemRequest struct {
	ProblemID uint `json:"problem_id" validate:"required"`
}

// UpdateProblemRequest patches problem fields.
type UpdateProblemRequest struct {
	ProblemID uint                   `json:"problem_id" validate:"required"`
	Updates   map[string]interface{} `json:"updates" validate:"required,min=1"`
}

// ProblemActionResponse reports the outcome of a problem moderation action.
type ProblemActionResponse struct {
	ProblemID    uint   `json:"problem_id"`
	Action       string `json:"action"`
	NewStatus    string `json:"new_status,omitempty"`
	Reason       string `json:"reason,omitempty"`
	AuditEntryID uint   `json:"audit_entry_id"`
}

// PendingRequestListRequest defines filters for pending request queries.
type PendingRequestListRequest struct {
	Page        int
	PageSize    int
	Status      string
	RequestType string
}

// PendingRequestResponse serializes a deferred privileged action.
type PendingRequestResponse struct {
	ID          uint       `json:"id"`
	RequestType string     `json:"request_type"`
	RequestedBy uint       `json:"requested_by"`
	TargetID    uint       `json:"target_id"`
	TargetType  string     `json:"target_type"`
	NewRole     string     `json:"new_role,omitempty"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewPendingRequestResponse maps a pending request model to its response shape.
func NewPendingRequestResponse(request models.PendingRequest) PendingRequestResponse {
	return PendingRequestResponse{
		ID:          request.ID,
		RequestType: request.RequestType,
		RequestedBy: request.RequestedBy,
		TargetID:    request.TargetID,
		TargetType:  request.TargetType,
		NewRole:     request.NewRole,
		Reason:      request.Reason,
		Status:      request.Status,
		ReviewedBy:  request.ReviewedBy,
		ReviewedAt:  request.ReviewedAt,
		CreatedAt:   request.CreatedAt,
	}
}

// PendingRequestListResponse wraps a paginated request query.
type PendingRequestListResponse struct {
	Items      []PendingRequestResponse `json:"items"`
	Pagination PaginationMeta           `json:"pagination"`
}

// RequestPromotionRequest files a self-service admin promotion request.
type RequestPromotionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=2000"`
}

// ApprovePendingRequest approves a deferred action.
type ApprovePendingRequest struct {
	RequestID uint `json:"request_id" validate:"required"`
}

// RejectPendingRequest rejects a deferred action with an optional reason.
type RejectPendingRequest struct {
	RequestID uint   `json:"request_id" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=2000"`
}

// RequestReviewResponse reports the outcome of an approve or reject. On
// approval, ActionResult records the executed mutation, including a captured
// failure; the request itself is still marked reviewed.
type RequestReviewResponse struct {
	RequestID    uint                 `json:"request_id"`
	RequestType  string               `json:"request_type"`
	Status       string               `json:"status"`
	ActionResult *models.ActionResult `json:"action_result,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	ReviewedAt   time.Time            `json:"reviewed_at"`
}
