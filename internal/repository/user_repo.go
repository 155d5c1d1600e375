package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/models"
)

// UserRepository persists platform accounts. Role and soft-delete mutations are
// conditional on the row version; callers reload and retry on a false return.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	UpdateRole(ctx context.Context, id uint, newRole string, expectedVersion uint) (bool, error)
	SetDeleted(ctx context.Context, id uint, deleted bool, deletedBy *uint, deletedAt *time.Time, expectedVersion uint) (bool, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uint, newRole string, expectedVersion uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"role":    newRole,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) SetDeleted(ctx context.Context, id uint, deleted bool, deletedBy *uint, deletedAt *time.Time, expectedVersion uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"is_deleted": deleted,
			"deleted_by": deletedBy,
			"deleted_at": deletedAt,
			"version":    expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	type roleCount struct {
		Role  string
		Count int64
	}

	var rows []roleCount
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) as count").
		Where("is_deleted = ?", false).
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}
