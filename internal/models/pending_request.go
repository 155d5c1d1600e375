package models

import "time"

// Pending request lifecycle states. Status moves out of pending exactly once;
// only a revert of the approving ledger entry may put it back.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// Deferred action kinds recorded as pending requests.
const (
	RequestTypeRoleChange     = "user_role_change"
	RequestTypeDemotion       = "user_demotion"
	RequestTypeAdminPromotion = "admin_promotion"
)

// PendingRequest records a privileged action deferred for super admin review.
// NewRole carries the requested role explicitly so executors never parse it out
// of the free-text reason.
type PendingRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RequestType string     `gorm:"size:64;not null;index" json:"request_type"`
	RequestedBy uint       `gorm:"not null;index" json:"requested_by"`
	TargetID    uint       `gorm:"not null" json:"target_id"`
	TargetType  string     `gorm:"size:32;not null" json:"target_type"`
	NewRole     string     `gorm:"size:32" json:"new_role,omitempty"`
	Reason      string     `gorm:"type:text" json:"reason"`
	Status      string     `gorm:"size:16;not null;default:pending;index" json:"status"`
	ReviewedBy  *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
