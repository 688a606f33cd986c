package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"gorm.io/gorm"
)

type RequestRepository interface {
	Create(ctx context.Context, b *domain.BatchRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.BatchRequest, error)
	MarkProcessing(ctx context.Context, requestID string) (bool, error)
	UpdateStatus(ctx context.Context, requestID string, status domain.Status) error
	UpdateItem(ctx context.Context, requestID string, item *domain.Item) error
}

type GormRequestRepo struct {
	db *gorm.DB
}

func NewGormRequestRepo(db *gorm.DB) *GormRequestRepo {
	return &GormRequestRepo{db: db}
}

func (r *GormRequestRepo) Create(ctx context.Context, b *domain.BatchRequest) error {
	model := batchRequestModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchRequestModelToDomain(model)
	}
	return nil
}

func (r *GormRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
	var model BatchRequestModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("serial_number ASC")
		}).
		First(&model, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchRequestModelToDomain(&model), nil
}

// MarkProcessing moves the batch to processing unless it already completed.
// Completed batches stay completed so a redelivered job becomes a no-op; a
// failed batch may re-enter processing when the broker retries it. The bool
// result reports whether the transition happened.
func (r *GormRequestRepo) MarkProcessing(ctx context.Context, requestID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchRequestModel{}).
		Where("request_id = ? AND status <> ?", requestID, domain.StatusCompleted).
		Update("status", domain.StatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&BatchRequestModel{}).
			Where("request_id = ?", requestID).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *GormRequestRepo) UpdateStatus(ctx context.Context, requestID string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&BatchRequestModel{}).
		Where("request_id = ?", requestID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateItem overwrites the stored output URLs and status for one item. The
// write is a full overwrite, so re-running an item after redelivery converges
// on the same row content.
func (r *GormRequestRepo) UpdateItem(ctx context.Context, requestID string, item *domain.Item) error {
	if item == nil {
		return domain.ErrValidation
	}

	model := batchItemModelFromDomain(requestID, item)
	result := r.db.WithContext(ctx).
		Model(&BatchItemModel{}).
		Where("request_id = ? AND serial_number = ?", requestID, item.SerialNumber).
		Updates(map[string]any{
			"output_urls": model.OutputURLs,
			"status":      model.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
