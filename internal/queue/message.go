package queue

import (
	"fmt"
	"strings"
)

// JobMessage is the broker payload for one batch processing job. The worker
// must be safely re-invocable with the same request id.
type JobMessage struct {
	RequestID     string `json:"requestId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m JobMessage) Validate() error {
	if strings.TrimSpace(m.RequestID) == "" {
		return fmt.Errorf("requestId is required")
	}
	return nil
}
