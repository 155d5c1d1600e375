package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/models"
)

// ProblemRepository persists moderated problems. Approval flips are conditional
// on the row version; Delete removes the row permanently.
type ProblemRepository interface {
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	SetApproval(ctx context.Context, id uint, approved bool, modifiedAt time.Time, expectedVersion uint) (bool, error)
	UpdateFields(ctx context.Context, id uint, patch map[string]interface{}, modifiedAt time.Time, expectedVersion uint) (bool, error)
	Delete(ctx context.Context, id uint) error
	CountByApproval(ctx context.Context) (approved int64, pending int64, err error)
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository constructs the problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) SetApproval(ctx context.Context, id uint, approved bool, modifiedAt time.Time, expectedVersion uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Problem{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"is_approved":      approved,
			"last_modified_at": modifiedAt,
			"version":          expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *problemRepository) UpdateFields(ctx context.Context, id uint, patch map[string]interface{}, modifiedAt time.Time, expectedVersion uint) (bool, error) {
	updates := make(map[string]interface{}, len(patch)+2)
	for key, value := range patch {
		updates[key] = value
	}
	updates["last_modified_at"] = modifiedAt
	updates["version"] = expectedVersion + 1

	result := r.db.WithContext(ctx).
		Model(&models.Problem{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *problemRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Problem{}, id).Error
}

func (r *problemRepository) CountByApproval(ctx context.Context) (int64, int64, error) {
	var approved, pending int64
	if err := r.db.WithContext(ctx).Model(&models.Problem{}).Where("is_approved = ?", true).Count(&approved).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Problem{}).Where("is_approved = ?", false).Count(&pending).Error; err != nil {
		return 0, 0, err
	}
	return approved, pending, nil
}
