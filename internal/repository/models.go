package repository

import (
	"time"

	"github.com/kursadbilgin/transcode-engine/internal/domain"
)

// BatchRequestModel is the persistence model for the batch_requests table.
type BatchRequestModel struct {
	RequestID  string           `gorm:"type:uuid;primaryKey"`
	Status     domain.Status    `gorm:"type:varchar(20);not null"`
	WebhookURL *string          `gorm:"type:varchar(2048)"`
	Items      []BatchItemModel `gorm:"foreignKey:RequestID;references:RequestID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BatchRequestModel) TableName() string {
	return "batch_requests"
}

// BatchItemModel is the persistence model for batch_items. Rows are keyed by
// (request_id, serial_number); URL lists are stored as jsonb so a nil output
// entry survives round trips.
type BatchItemModel struct {
	RequestID    string        `gorm:"type:uuid;primaryKey"`
	SerialNumber int           `gorm:"primaryKey;autoIncrement:false"`
	ProductName  string        `gorm:"type:varchar(255);not null"`
	InputURLs    []string      `gorm:"type:jsonb;serializer:json;not null"`
	OutputURLs   []*string     `gorm:"type:jsonb;serializer:json"`
	Status       domain.Status `gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (BatchItemModel) TableName() string {
	return "batch_items"
}

// ImageAttemptModel is the persistence model for image_attempts.
type ImageAttemptModel struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	RequestID    string  `gorm:"type:uuid;not null"`
	SerialNumber int     `gorm:"not null"`
	ImageIndex   int     `gorm:"not null"`
	Stage        string  `gorm:"type:varchar(20);not null"`
	OutputURL    *string `gorm:"type:varchar(2048)"`
	Error        *string `gorm:"type:text"`
	CreatedAt    time.Time
}

func (ImageAttemptModel) TableName() string {
	return "image_attempts"
}

func batchRequestModelFromDomain(b *domain.BatchRequest) *BatchRequestModel {
	if b == nil {
		return nil
	}

	items := make([]BatchItemModel, 0, len(b.Items))
	for idx := range b.Items {
		items = append(items, *batchItemModelFromDomain(b.RequestID, &b.Items[idx]))
	}

	return &BatchRequestModel{
		RequestID:  b.RequestID,
		Status:     b.Status,
		WebhookURL: b.WebhookURL,
		Items:      items,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func batchRequestModelToDomain(m *BatchRequestModel) *domain.BatchRequest {
	if m == nil {
		return nil
	}

	items := make([]domain.Item, 0, len(m.Items))
	for idx := range m.Items {
		items = append(items, *batchItemModelToDomain(&m.Items[idx]))
	}

	return &domain.BatchRequest{
		RequestID:  m.RequestID,
		Status:     m.Status,
		Items:      items,
		WebhookURL: m.WebhookURL,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func batchItemModelFromDomain(requestID string, i *domain.Item) *BatchItemModel {
	if i == nil {
		return nil
	}

	return &BatchItemModel{
		RequestID:    requestID,
		SerialNumber: i.SerialNumber,
		ProductName:  i.ProductName,
		InputURLs:    i.InputURLs,
		OutputURLs:   i.OutputURLs,
		Status:       i.Status,
	}
}

func batchItemModelToDomain(m *BatchItemModel) *domain.Item {
	if m == nil {
		return nil
	}

	return &domain.Item{
		SerialNumber: m.SerialNumber,
		ProductName:  m.ProductName,
		InputURLs:    m.InputURLs,
		OutputURLs:   m.OutputURLs,
		Status:       m.Status,
	}
}

func imageAttemptModelFromDomain(a *domain.ImageAttempt) *ImageAttemptModel {
	if a == nil {
		return nil
	}

	return &ImageAttemptModel{
		ID:           a.ID,
		RequestID:    a.RequestID,
		SerialNumber: a.SerialNumber,
		ImageIndex:   a.ImageIndex,
		Stage:        a.Stage,
		OutputURL:    a.OutputURL,
		Error:        a.Error,
		CreatedAt:    a.CreatedAt,
	}
}

func imageAttemptModelToDomain(m *ImageAttemptModel) *domain.ImageAttempt {
	if m == nil {
		return nil
	}

	return &domain.ImageAttempt{
		ID:           m.ID,
		RequestID:    m.RequestID,
		SerialNumber: m.SerialNumber,
		ImageIndex:   m.ImageIndex,
		Stage:        m.Stage,
		OutputURL:    m.OutputURL,
		Error:        m.Error,
		CreatedAt:    m.CreatedAt,
	}
}
