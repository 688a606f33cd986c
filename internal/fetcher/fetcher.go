package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRetryCount   = 3
	defaultRetryWait    = time.Second
	maxRetryWait        = 3 * time.Second
)

// Fetcher retrieves the raw bytes of one source image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads images over HTTP with a bounded timeout and a small
// local retry budget. These retries are independent of the broker's job-level
// retry; once they are exhausted the failure surfaces to the caller.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(timeout time.Duration, retries int) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if retries < 0 {
		retries = defaultRetryCount
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(defaultRetryWait)
	client.SetRetryMaxWaitTime(maxRetryWait)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	return &HTTPFetcher{client: client}
}

func NewHTTPFetcherWithClient(client *resty.Client) (*HTTPFetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultFetchTimeout)
	}
	return &HTTPFetcher{client: client}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f == nil || f.client == nil {
		return nil, fmt.Errorf("fetcher is not initialized")
	}

	response, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	if response == nil {
		return nil, &FetchError{
			Kind: FetchTransport,
			URL:  url,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &FetchError{
			Kind:       FetchBadStatus,
			URL:        url,
			StatusCode: statusCode,
		}
	}

	body := response.Body()
	if len(body) == 0 {
		return nil, &FetchError{
			Kind: FetchTransport,
			URL:  url,
		}
	}

	return body, nil
}
