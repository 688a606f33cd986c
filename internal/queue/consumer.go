package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/transcode-engine/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// maxDeliveryAttempts bounds how often one job message is handed to a worker
// before it is parked on the DLQ. Each retry-queue round trip increments the
// x-death count the budget is checked against.
const maxDeliveryAttempts = 5

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, ch, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handler MessageHandler) error {
	var msg JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("dead-lettering message: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		return c.deadLetter(ctx, ch, d)
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("dead-lettering message: validation failed",
			zap.Error(err),
			zap.String("requestId", msg.RequestID),
		)
		return c.deadLetter(ctx, ch, d)
	}

	if err := handler(ctx, msg); err != nil {
		// A missing record means the message references a batch that will never
		// exist; retrying it would loop forever.
		if errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("dead-lettering message: batch request not found",
				zap.String("requestId", msg.RequestID),
			)
			return c.deadLetter(ctx, ch, d)
		}

		attempts := deliveryAttempts(d) + 1
		if attempts >= maxDeliveryAttempts {
			c.logger.Warn("dead-lettering message: delivery budget exhausted",
				zap.String("requestId", msg.RequestID),
				zap.Int64("attempts", attempts),
				zap.Error(err),
			)
			return c.deadLetter(ctx, ch, d)
		}

		c.logger.Warn("handler failed, routing message through retry queue",
			zap.String("requestId", msg.RequestID),
			zap.Int64("attempts", attempts),
			zap.Error(err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

// deadLetter publishes the message to the DLQ routing key and acks the
// original delivery. Rejecting instead would send it through the retry cycle,
// which is wrong for permanently unprocessable messages.
func (c *RabbitMQConsumer) deadLetter(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) error {
	pub := amqp.Publishing{
		ContentType:   d.ContentType,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Body:          d.Body,
	}
	if err := ch.PublishWithContext(ctx, dlxExchangeName, deadRoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("failed to dead-letter message: %w", err)
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack dead-lettered delivery: %w", err)
	}
	return nil
}

// deliveryAttempts reads how many times the work queue has already rejected
// this message from the broker's x-death header. A first delivery has no
// header and counts as zero.
func deliveryAttempts(d amqp.Delivery) int64 {
	raw, ok := d.Headers["x-death"]
	if !ok {
		return 0
	}
	deaths, ok := raw.([]interface{})
	if !ok {
		return 0
	}

	for _, entry := range deaths {
		death, ok := entry.(amqp.Table)
		if !ok {
			continue
		}
		if name, _ := death["queue"].(string); name != WorkQueueName {
			continue
		}
		if count, ok := death["count"].(int64); ok {
			return count
		}
	}
	return 0
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
