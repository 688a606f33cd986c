package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FetchErrorKind classifies why a source image download failed.
type FetchErrorKind string

const (
	FetchTimeout   FetchErrorKind = "timeout"
	FetchBadStatus FetchErrorKind = "non-success-status"
	FetchTransport FetchErrorKind = "transport-error"
)

// FetchError is the terminal failure of one image download after local
// retries are exhausted.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{fmt.Sprintf("fetch %s failed: %s", e.URL, e.Kind)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func classifyTransportError(url string, err error) *FetchError {
	kind := FetchTransport

	if errors.Is(err, context.DeadlineExceeded) {
		kind = FetchTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = FetchTimeout
	}

	return &FetchError{
		Kind:  kind,
		URL:   url,
		Cause: err,
	}
}
