package queue

import "context"

const (
	// WorkQueueName is the single batch transcoding work queue.
	WorkQueueName = "transcode"

	// RetryQueueName parks failed deliveries for a delay before dead-lettering
	// them back onto the work queue.
	RetryQueueName = "retry.transcode"

	// DLQName receives messages that are permanently unprocessable, e.g.
	// malformed payloads, orphan requests, or jobs that exhausted their
	// delivery budget.
	DLQName = "dlq.transcode"
)

// Publisher publishes batch job messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg JobMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. A nil return acks the
// delivery; ErrNotFound parks it on the DLQ; any other error routes it
// through the retry queue so the broker re-drives the job after a delay
// (at-least-once delivery), until the delivery budget is spent.
type MessageHandler func(ctx context.Context, msg JobMessage) error

// Consumer consumes batch job messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
