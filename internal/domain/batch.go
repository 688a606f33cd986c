package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status represents the lifecycle state of a batch request or a single item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions occur from this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Item is one named unit within a batch: an ordered list of source image URLs
// and the transcoded results collected so far. A nil OutputURLs entry is the
// failure sentinel for the source image at the same index.
type Item struct {
	SerialNumber int
	ProductName  string
	InputURLs    []string
	OutputURLs   []*string
	Status       Status
}

func (i *Item) Validate() error {
	if i.SerialNumber < 1 {
		return fmt.Errorf("%w: serial number must be >= 1", ErrValidation)
	}
	if strings.TrimSpace(i.ProductName) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if len(i.InputURLs) == 0 {
		return fmt.Errorf("%w: item %d has no input urls", ErrValidation, i.SerialNumber)
	}
	for _, raw := range i.InputURLs {
		if _, err := url.ParseRequestURI(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%w: item %d has invalid input url %q", ErrValidation, i.SerialNumber, raw)
		}
	}
	return nil
}

// HasSentinel reports whether at least one source image failed. An item is
// failed if and only if this holds once it reaches a terminal status.
func (i *Item) HasSentinel() bool {
	for _, out := range i.OutputURLs {
		if out == nil {
			return true
		}
	}
	return false
}

// Progress returns the fraction of images attempted so far, in [0, 1].
func (i *Item) Progress() float64 {
	if len(i.InputURLs) == 0 {
		return 0
	}
	attempted := len(i.OutputURLs)
	if attempted > len(i.InputURLs) {
		attempted = len(i.InputURLs)
	}
	return float64(attempted) / float64(len(i.InputURLs))
}

// BatchRequest is one submitted unit of work containing multiple items.
// RequestID is globally unique and immutable after creation; status moves
// pending -> processing -> {completed, failed}.
type BatchRequest struct {
	RequestID  string
	Status     Status
	Items      []Item
	WebhookURL *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *BatchRequest) Validate() error {
	if strings.TrimSpace(b.RequestID) == "" {
		return fmt.Errorf("%w: request id is required", ErrValidation)
	}
	if len(b.Items) == 0 {
		return fmt.Errorf("%w: batch must include at least one item", ErrValidation)
	}
	for idx := range b.Items {
		if err := b.Items[idx].Validate(); err != nil {
			return err
		}
	}
	if b.WebhookURL != nil {
		if _, err := url.ParseRequestURI(strings.TrimSpace(*b.WebhookURL)); err != nil {
			return fmt.Errorf("%w: invalid webhook url %q", ErrValidation, *b.WebhookURL)
		}
	}
	return nil
}

// AnyItemFailed reports whether at least one item ended in failed status.
// The batch is failed if and only if this holds.
func (b *BatchRequest) AnyItemFailed() bool {
	for idx := range b.Items {
		if b.Items[idx].Status == StatusFailed {
			return true
		}
	}
	return false
}
