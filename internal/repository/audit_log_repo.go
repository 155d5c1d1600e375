package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/models"
)

// AuditLogFilter narrows ledger queries.
type AuditLogFilter struct {
	Page        int
	PageSize    int
	Action      string
	TargetType  string
	PerformedBy *uint
	DateFrom    *time.Time
	DateTo      *time.Time
	SortAsc     bool
}

// AuditLogRepository persists the append-only governance ledger. Entries are
// inserted and queried, never updated or deleted.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	GetByID(ctx context.Context, id uint) (models.AuditLog, error)
	FindRevertOf(ctx context.Context, originalID uint) (*models.AuditLog, error)
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error)
	Count(ctx context.Context) (int64, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository constructs the ledger repository.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) GetByID(ctx context.Context, id uint) (models.AuditLog, error) {
	var entry models.AuditLog
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return models.AuditLog{}, err
	}
	return entry, nil
}

func (r *auditLogRepository) FindRevertOf(ctx context.Context, originalID uint) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := r.db.WithContext(ctx).
		Where("action = ? AND revert_of_id = ?", string(models.AuditActionReverted), originalID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.Action != "" {
		query = query.Where("action LIKE ?", "%"+filter.Action+"%")
	}
	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.PerformedBy != nil {
		query = query.Where("performed_by = ?", *filter.PerformedBy)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	order := "created_at DESC"
	if filter.SortAsc {
		order = "created_at ASC"
	}

	var entries []models.AuditLog
	if err := query.Order(order).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *auditLogRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error
	return total, err
}
