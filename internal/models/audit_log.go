package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction names a governed action recorded in the ledger.
type AuditAction string

// Ledger action kinds.
const (
	AuditUserRoleChanged         AuditAction = "user_role_changed"
	AuditUserPromotedToAdmin     AuditAction = "user_promoted_to_admin"
	AuditUserDemoted             AuditAction = "user_demoted"
	AuditUserRoleChangeRequested AuditAction = "user_role_change_requested"
	AuditUserDemotionRequested   AuditAction = "user_demotion_requested"
	AuditUserDeleted             AuditAction = "user_deleted"
	AuditRequestApproved         AuditAction = "request_approved"
	AuditRequestRejected         AuditAction = "request_rejected"
	AuditProblemApproved         AuditAction = "problem_approved"
	AuditProblemRejected         AuditAction = "problem_rejected"
	AuditProblemSoftDeleted      AuditAction = "problem_soft_deleted"
	AuditProblemHardDeleted      AuditAction = "problem_permanently_deleted"
	AuditProblemUpdated          AuditAction = "problem_updated"
	AuditActionReverted          AuditAction = "action_reverted"
)

// Target entity kinds referenced by ledger entries.
const (
	TargetTypeUser    = "user"
	TargetTypeProblem = "problem"
	TargetTypeRequest = "request"
)

// reversibleActions fixes which action kinds a super admin may later undo.
// The writer stamps Reversible from this table at creation time. The
// <type>_executed entries written alongside an approval are absent on
// purpose: the request_approved entry is the single revert point for the
// whole approval, so its companions never carry a second one.
var reversibleActions = map[AuditAction]bool{
	AuditUserRoleChanged:     true,
	AuditUserPromotedToAdmin: true,
	AuditUserDemoted:         true,
	AuditUserDeleted:         true,
	AuditRequestApproved:     true,
	AuditProblemApproved:     true,
	AuditProblemRejected:     true,
	AuditProblemSoftDeleted:  true,
}

// Reversible reports whether entries of this kind may be reverted.
func (a AuditAction) Reversible() bool {
	return reversibleActions[a]
}

func (a AuditAction) String() string {
	return string(a)
}

// ExecutedAction derives the ledger action kind written when an approved
// pending request of the given type is carried out.
func ExecutedAction(requestType string) AuditAction {
	return AuditAction(requestType + "_executed")
}

// AuditLog is an append-only ledger entry. Entries are never edited or deleted;
// a reverted entry is only ever referenced by a later action_reverted entry,
// whose RevertOfID column enforces at most one revert per entry.
type AuditLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Action      string            `gorm:"size:64;not null;index" json:"action"`
	PerformedBy uint              `gorm:"not null;index" json:"performed_by"`
	TargetType  string            `gorm:"size:32;not null;index" json:"target_type"`
	TargetID    uint              `gorm:"not null" json:"target_id"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Reversible  bool              `gorm:"not null;default:false" json:"reversible"`
	RevertOfID  *uint             `gorm:"uniqueIndex" json:"revert_of_id,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}
