package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/transcode-engine/internal/domain"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier delivers a best-effort completion callback. Callers treat any
// returned error as log-and-forget; delivery is never retried and never
// affects the job outcome. The persisted record stays the source of truth.
type Notifier interface {
	Notify(ctx context.Context, record *domain.BatchRequest) error
}

type completionPayload struct {
	RequestID string           `json:"requestId"`
	Status    string           `json:"status"`
	Products  []completionItem `json:"products"`
	Error     *string          `json:"error"`
}

type completionItem struct {
	SerialNumber int       `json:"serialNumber"`
	ProductName  string    `json:"productName"`
	InputURLs    []string  `json:"inputUrls"`
	OutputURLs   []*string `json:"outputUrls"`
	Status       string    `json:"status"`
}

// WebhookNotifier POSTs the final batch record to the endpoint configured on
// the batch, if any.
type WebhookNotifier struct {
	client *resty.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	client := resty.New()
	client.SetTimeout(defaultNotifyTimeout)
	client.SetRetryCount(0)

	return &WebhookNotifier{client: client}
}

func NewWebhookNotifierWithClient(client *resty.Client) (*WebhookNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultNotifyTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{client: client}, nil
}

func (n *WebhookNotifier) Notify(ctx context.Context, record *domain.BatchRequest) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}
	if record == nil {
		return fmt.Errorf("batch record is required")
	}
	if record.WebhookURL == nil || strings.TrimSpace(*record.WebhookURL) == "" {
		return nil
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildPayload(record)).
		Post(strings.TrimSpace(*record.WebhookURL))
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook endpoint returned status %d", statusCode)
	}

	return nil
}

func buildPayload(record *domain.BatchRequest) completionPayload {
	items := make([]completionItem, 0, len(record.Items))
	for idx := range record.Items {
		item := &record.Items[idx]
		items = append(items, completionItem{
			SerialNumber: item.SerialNumber,
			ProductName:  item.ProductName,
			InputURLs:    item.InputURLs,
			OutputURLs:   item.OutputURLs,
			Status:       item.Status.String(),
		})
	}

	var errMsg *string
	if record.AnyItemFailed() {
		msg := "some items failed processing"
		errMsg = &msg
	}

	return completionPayload{
		RequestID: record.RequestID,
		Status:    record.Status.String(),
		Products:  items,
		Error:     errMsg,
	}
}
