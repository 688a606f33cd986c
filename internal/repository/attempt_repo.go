package repository

import (
	"context"

	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.ImageAttempt) error
	GetByRequestID(ctx context.Context, requestID string) ([]domain.ImageAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.ImageAttempt) error {
	model := imageAttemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *imageAttemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) GetByRequestID(ctx context.Context, requestID string) ([]domain.ImageAttempt, error) {
	var models []ImageAttemptModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.ImageAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *imageAttemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
