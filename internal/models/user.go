package models

import "time"

// User is the platform account acted on by governance operations. Role and the
// soft-delete flag are only ever mutated through the governance services; the
// version column backs their optimistic concurrency checks.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	FirstName      string     `gorm:"size:100;not null" json:"first_name"`
	LastName       string     `gorm:"size:100" json:"last_name"`
	Email          string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role           string     `gorm:"size:32;not null;default:user" json:"role"`
	SolvedCount    int        `json:"solved_count"`
	AttemptedCount int        `json:"attempted_count"`
	IsDeleted      bool       `gorm:"not null;default:false" json:"is_deleted"`
	DeletedBy      *uint      `json:"deleted_by,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	Version        uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
