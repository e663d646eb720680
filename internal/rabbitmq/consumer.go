package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/pkg/model"
)

// Sink stores an inbound notification in the user's inbox.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) (model.Notification, error)
}

// Consumer ingests operations-originated notifications from a queue.
type Consumer struct {
	channel Channel
	queue   string
	sink    Sink
	logger  *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer creates a consumer for queue.
func NewConsumer(channel Channel, queue string, sink Sink, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		channel: channel,
		queue:   queue,
		sink:    sink,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start declares the queue and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.logger.Info("rabbitmq.consumer_started", zap.String("queue", c.queue))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, msgs)
	}()
	return nil
}

func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("rabbitmq.consumer_channel_closed", zap.String("queue", c.queue))
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var n model.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		c.logger.Error("rabbitmq.unmarshal_failed", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	stored, err := c.sink.Deliver(ctx, n)
	switch {
	case err == nil:
		_ = msg.Ack(false)
		c.logger.Debug("rabbitmq.notification_ingested",
			zap.String("notification_id", stored.ID),
			zap.String("user_id", stored.UserID))
	case errors.Is(err, apperr.ErrInvalidInput):
		// invalid payloads are dropped, not requeued
		c.logger.Warn("rabbitmq.notification_rejected", zap.Error(err))
		_ = msg.Nack(false, false)
	default:
		c.logger.Error("rabbitmq.ingest_failed", zap.Error(err))
		_ = msg.Nack(false, true)
	}
}

// Stop halts consumption and waits for the in-flight message.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}
