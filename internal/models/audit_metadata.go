package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// The metadata column is an open JSON bag, but each action kind writes one of
// the typed shapes below so revert handlers can decode the fields they need
// instead of trusting an untyped blob. Key names stay camelCase on the wire.

// UserSnapshot captures user fields before a destructive action.
type UserSnapshot struct {
	FirstName      string `json:"firstname"`
	LastName       string `json:"lastname"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	SolvedCount    int    `json:"solvedProblems"`
	AttemptedCount int    `json:"attemptedProblems"`
}

// RoleChangeMetadata accompanies user_role_changed and the *_requested entries.
type RoleChangeMetadata struct {
	TargetUser       UserSnapshot `json:"targetUser"`
	OldRole          string       `json:"oldRole"`
	NewRole          string       `json:"newRole"`
	RequiresApproval bool         `json:"requiresApproval"`
}

// UserDeletionMetadata accompanies user_deleted entries.
type UserDeletionMetadata struct {
	DeletedUser UserSnapshot `json:"deletedUser"`
	Reason      string       `json:"reason"`
}

// ProblemModerationMetadata accompanies problem approval, rejection, deletion
// and update entries.
type ProblemModerationMetadata struct {
	ProblemTitle    string   `json:"problemTitle"`
	ProblemAuthorID uint     `json:"problemAuthor"`
	PreviousStatus  string   `json:"previousStatus,omitempty"`
	RejectionReason string   `json:"rejectionReason,omitempty"`
	DeletionType    string   `json:"deletionType,omitempty"`
	UpdatedFields   []string `json:"updatedFields,omitempty"`
}

// ActionResult records the outcome of an executor or undo handler. Failures are
// captured here rather than aborting the surrounding governance record.
type ActionResult struct {
	Action       string `json:"action"`
	TargetUserID uint   `json:"targetUserId,omitempty"`
	OldRole      string `json:"oldRole,omitempty"`
	NewRole      string `json:"newRole,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// RequestReviewMetadata accompanies request_approved and request_rejected entries.
type RequestReviewMetadata struct {
	RequestType     string        `json:"requestType"`
	RequestedBy     uint          `json:"requestedBy"`
	OriginalReason  string        `json:"originalReason"`
	ActionResult    *ActionResult `json:"actionResult,omitempty"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
}

// ExecutionMetadata accompanies <requestType>_executed entries.
type ExecutionMetadata struct {
	ExecutedViaRequest uint         `json:"executedViaRequest"`
	ActionResult       ActionResult `json:"actionResult"`
}

// RevertMetadata accompanies action_reverted entries.
type RevertMetadata struct {
	OriginalAuditID     uint         `json:"originalAuditId"`
	OriginalAction      string       `json:"originalAction"`
	OriginalPerformedBy uint         `json:"originalPerformedBy"`
	RevertResult        ActionResult `json:"revertResult"`
}

// EncodeMetadata converts a typed metadata value into the JSON map stored on a
// ledger entry.
func EncodeMetadata(v interface{}) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeMetadata extracts a typed metadata value from a stored JSON map.
func DecodeMetadata(m datatypes.JSONMap, out interface{}) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
