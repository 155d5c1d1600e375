package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codearena/codearena-go-api/internal/models"
)

// PendingRequestFilter narrows pending request queries.
type PendingRequestFilter struct {
	Page        int
	PageSize    int
	Status      string
	RequestType string
}

// PendingRequestRepository persists deferred privileged actions. MarkReviewed
// is a compare-and-swap on the pending status so a request is approved or
// rejected at most once under concurrency.
type PendingRequestRepository interface {
	Create(ctx context.Context, request *models.PendingRequest) error
	GetByID(ctx context.Context, id uint) (models.PendingRequest, error)
	MarkReviewed(ctx context.Context, id uint, status string, reviewerID uint, reviewedAt time.Time, reason *string) (bool, error)
	ResetToPending(ctx context.Context, id uint) error
	List(ctx context.Context, filter PendingRequestFilter) ([]models.PendingRequest, int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountPendingByRequester(ctx context.Context, requesterID uint, requestType string) (int64, error)
}

type pendingRequestRepository struct {
	db *gorm.DB
}

// NewPendingRequestRepository constructs the pending request repository.
func NewPendingRequestRepository(db *gorm.DB) PendingRequestRepository {
	return &pendingRequestRepository{db: db}
}

func (r *pendingRequestRepository) Create(ctx context.Context, request *models.PendingRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *pendingRequestRepository) GetByID(ctx context.Context, id uint) (models.PendingRequest, error) {
	var request models.PendingRequest
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return models.PendingRequest{}, err
	}
	return request, nil
}

func (r *pendingRequestRepository) MarkReviewed(ctx context.Context, id uint, status string, reviewerID uint, reviewedAt time.Time, reason *string) (bool, error) {
	updates := map[string]interface{}{
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": reviewedAt,
	}
	if reason != nil {
		updates["reason"] = *reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.PendingRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *pendingRequestRepository) ResetToPending(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.RequestStatusPending,
			"reviewed_by": nil,
			"reviewed_at": nil,
		}).Error
}

func (r *pendingRequestRepository) List(ctx context.Context, filter PendingRequestFilter) ([]models.PendingRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PendingRequest{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RequestType != "" {
		query = query.Where("request_type = ?", filter.RequestType)
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

	var requests []models.PendingRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *pendingRequestRepository) CountPendingByRequester(ctx context.Context, requesterID uint, requestType string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingRequest{}).
		Where("requested_by = ? AND request_type = ? AND status = ?", requesterID, requestType, models.RequestStatusPending).
		Count(&total).Error
	return total, err
}

func (r *pendingRequestRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PendingRequest{}).
		Where("status = ?", status).
		Count(&total).Error
	return total, err
}
