package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"github.com/kursadbilgin/transcode-engine/internal/observability"
	"github.com/kursadbilgin/transcode-engine/internal/queue"
	"github.com/kursadbilgin/transcode-engine/internal/repository"
	"go.uber.org/zap"
)

// Manifest column headers, matched case-insensitively.
const (
	headerSerialNumber = "s. no."
	headerProductName  = "product name"
	headerInputURLs    = "input image urls"
)

const exportOutputHeader = "Output Image Urls"

type BatchService struct {
	requests  repository.RequestRepository
	publisher queue.Publisher
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

func NewBatchService(
	requests repository.RequestRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*BatchService, error) {
	if requests == nil {
		return nil, fmt.Errorf("request repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		requests:  requests,
		publisher: publisher,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}, nil
}

// Create validates a CSV manifest, persists the batch as pending and enqueues
// its job message. If publishing fails the record stays pending so the caller
// can resubmit without losing the upload.
func (s *BatchService) Create(ctx context.Context, manifest io.Reader, webhookURL string) (*domain.BatchRequest, error) {
	items, err := ParseManifest(manifest)
	if err != nil {
		return nil, err
	}

	record := &domain.BatchRequest{
		RequestID: s.newID(),
		Status:    domain.StatusPending,
		Items:     items,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	if trimmed := strings.TrimSpace(webhookURL); trimmed != "" {
		record.WebhookURL = &trimmed
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist batch request: %w", err)
	}

	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
	}

	msg := queue.JobMessage{
		RequestID:     record.RequestID,
		CorrelationID: correlationID,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
		s.logger.Error("failed to enqueue batch job",
			zap.String("requestId", record.RequestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue batch job: %w", err)
	}

	s.logger.Info("batch accepted",
		zap.String("requestId", record.RequestID),
		zap.Int("items", len(record.Items)),
	)

	return record, nil
}

func (s *BatchService) GetStatus(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("%w: request id is required", domain.ErrValidation)
	}
	return s.requests.GetByRequestID(ctx, requestID)
}

// ExportCSV renders the finished batch as a downloadable manifest with output
// URLs appended. Only completed batches export; anything else conflicts.
func (s *BatchService) ExportCSV(ctx context.Context, requestID string) ([]byte, error) {
	record, err := s.GetStatus(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if record.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: batch %s is %s, export requires completed", domain.ErrConflict, requestID, record.Status)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"S. No.", "Product Name", "Input Image Urls", exportOutputHeader}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}

	for idx := range record.Items {
		item := &record.Items[idx]
		outputs := make([]string, 0, len(item.OutputURLs))
		for _, out := range item.OutputURLs {
			if out != nil {
				outputs = append(outputs, *out)
			}
		}

		row := []string{
			strconv.Itoa(item.SerialNumber),
			item.ProductName,
			strings.Join(item.InputURLs, ", "),
			strings.Join(outputs, ", "),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}

	return buf.Bytes(), nil
}

// ParseManifest reads a CSV manifest into batch items. The header row must
// carry the serial number, product name and input URL columns; URL cells hold
// comma separated lists.
func ParseManifest(r io.Reader) ([]domain.Item, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: manifest is required", domain.ErrValidation)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: manifest is empty", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest header: %v", domain.ErrValidation, err)
	}

	columns, err := mapHeaderColumns(header)
	if err != nil {
		return nil, err
	}

	var items []domain.Item
	seenSerials := make(map[int]bool)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read manifest line %d: %v", domain.ErrValidation, line, err)
		}

		serialRaw := strings.TrimSpace(row[columns[headerSerialNumber]])
		serial, err := strconv.Atoi(serialRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d has invalid serial number %q", domain.ErrValidation, line, serialRaw)
		}
		if seenSerials[serial] {
			return nil, fmt.Errorf("%w: duplicate serial number %d", domain.ErrValidation, serial)
		}
		seenSerials[serial] = true

		item := domain.Item{
			SerialNumber: serial,
			ProductName:  strings.TrimSpace(row[columns[headerProductName]]),
			InputURLs:    splitURLList(row[columns[headerInputURLs]]),
			Status:       domain.StatusPending,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: manifest has no data rows", domain.ErrValidation)
	}

	return items, nil
}

func mapHeaderColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}

	for _, required := range []string{headerSerialNumber, headerProductName, headerInputURLs} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: manifest is missing column %q", domain.ErrValidation, required)
		}
	}

	return columns, nil
}

func splitURLList(cell string) []string {
	parts := strings.Split(cell, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
