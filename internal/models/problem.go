package models

import "time"

// Problem is the moderated content entity. Approval state is owned by the
// governance services; a soft-deleted problem is one with IsApproved forced to
// false, a hard delete removes the row entirely.
type Problem struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Title          string     `gorm:"size:255;not null" json:"title"`
	AuthorID       uint       `gorm:"not null" json:"author_id"`
	Difficulty     string     `gorm:"size:32" json:"difficulty"`
	IsApproved     bool       `gorm:"not null;default:false" json:"is_approved"`
	LastModifiedAt *time.Time `json:"last_modified_at,omitempty"`
	Version        uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
