package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"github.com/kursadbilgin/transcode-engine/internal/observability"
)

const manifestFormField = "file"

type BatchService interface {
	Create(ctx context.Context, manifest io.Reader, webhookURL string) (*domain.BatchRequest, error)
	GetStatus(ctx context.Context, requestID string) (*domain.BatchRequest, error)
	ExportCSV(ctx context.Context, requestID string) ([]byte, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches/:requestId", h.GetBatch)
	v1.Get("/batches/:requestId/export", h.ExportBatch)

	return nil
}

type batchResponse struct {
	RequestID  string         `json:"requestId"`
	Status     string         `json:"status"`
	WebhookURL *string        `json:"webhookUrl,omitempty"`
	Products   []itemResponse `json:"products"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type itemResponse struct {
	SerialNumber int       `json:"serialNumber"`
	ProductName  string    `json:"productName"`
	InputURLs    []string  `json:"inputUrls"`
	OutputURLs   []*string `json:"outputUrls"`
	Status       string    `json:"status"`
	Progress     float64   `json:"progress"`
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(manifestFormField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "manifest file is required")
	}

	manifest, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open manifest file")
	}
	defer manifest.Close() //nolint:errcheck // read-only upload handle

	ctx := requestContext(c)
	record, err := h.service.Create(ctx, manifest, c.FormValue("webhookUrl"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBatchResponse(record))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	requestID := strings.TrimSpace(c.Params("requestId"))
	record, err := h.service.GetStatus(requestContext(c), requestID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(record))
}

func (h *BatchHandler) ExportBatch(c *fiber.Ctx) error {
	requestID := strings.TrimSpace(c.Params("requestId"))
	data, err := h.service.ExportCSV(requestContext(c), requestID)
	if err != nil {
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.csv"`, requestID))
	return c.Status(fiber.StatusOK).Send(data)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toBatchResponse(record *domain.BatchRequest) batchResponse {
	if record == nil {
		return batchResponse{}
	}

	items := make([]itemResponse, 0, len(record.Items))
	for idx := range record.Items {
		item := &record.Items[idx]
		items = append(items, itemResponse{
			SerialNumber: item.SerialNumber,
			ProductName:  item.ProductName,
			InputURLs:    item.InputURLs,
			OutputURLs:   item.OutputURLs,
			Status:       item.Status.String(),
			Progress:     item.Progress(),
		})
	}

	return batchResponse{
		RequestID:  record.RequestID,
		Status:     record.Status.String(),
		WebhookURL: record.WebhookURL,
		Products:   items,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
