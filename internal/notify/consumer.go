package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler processes one notification. Because requeue-on-failure causes
// redelivery, handlers with real side effects must tolerate receiving the
// same message more than once; the consumer does not deduplicate.
type Handler func(msg Message) error

// ProcessingError reports a handler failure. It never propagates past the
// consumer loop; the delivery is requeued instead.
type ProcessingError struct {
	MessageID string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to process notification %s: %v", e.MessageID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Consumer drains the notification queue with manual acknowledgment.
// Deliveries are processed sequentially within one consumer instance; a slow
// handler stalls the queue for this consumer. Scaling out means running more
// consumer processes on the same queue, at the cost of cross-consumer
// ordering.
type Consumer struct {
	ch       *amqp.Channel
	topology Topology
	handler  Handler
	log      zerolog.Logger

	// park moves a poison message to the dead letter queue; a field so
	// tests can observe it without a broker
	park func(ctx context.Context, d amqp.Delivery) error
}

// NewConsumer creates a consumer over an established broker connection
func NewConsumer(conn *Conn, handler Handler, log zerolog.Logger) *Consumer {
	c := &Consumer{
		ch:       conn.Channel(),
		topology: conn.Topology(),
		handler:  handler,
		log:      log.With().Str("component", "consumer").Logger(),
	}
	c.park = c.parkDeadLetter
	return c
}

// Run consumes deliveries until the context is cancelled or the channel
// closes. Messages are acknowledged only after successful processing;
// failures are negatively acknowledged with requeue, never discarded.
func (c *Consumer) Run(ctx context.Context) error {
	// One unacked message at a time: processing is sequential anyway, and
	// prefetching more would just hold messages hostage on a slow handler.
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("could not set QoS: %w", err)
	}

	deliveries, err := c.ch.Consume(
		c.topology.Queue,
		"",    // consumer tag
		false, // auto-ack disabled: we acknowledge manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.topology.Queue).Msg("Consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Consumer stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery runs the per-message state machine:
// Delivered -> Processing -> Acked | Nacked-Requeued.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// A payload that cannot be parsed will never parse. Give it one
		// redelivery in case of a truncated read, then park it on the
		// dead letter queue instead of requeueing forever.
		if d.Redelivered {
			c.log.Error().
				Err(err).
				Str("message_id", d.MessageId).
				Msg("Unparseable message redelivered, moving to dead letter queue")
			if parkErr := c.park(ctx, d); parkErr != nil {
				c.log.Error().Err(parkErr).Msg("Failed to park message, requeueing")
				c.nack(d, true)
				return
			}
			c.ack(d)
			return
		}
		c.log.Warn().
			Err(err).
			Str("message_id", d.MessageId).
			Msg("Failed to parse notification, requeueing")
		c.nack(d, true)
		return
	}

	if err := c.handler(msg); err != nil {
		procErr := &ProcessingError{MessageID: d.MessageId, Err: err}
		c.log.Error().
			Err(procErr).
			Int64("trade_id", msg.ID).
			Bool("redelivered", d.Redelivered).
			Msg("Notification processing failed, requeueing")
		c.nack(d, true)
		return
	}

	c.ack(d)
}

// parkDeadLetter publishes the raw body to the dead letter queue via the
// default exchange
func (c *Consumer) parkDeadLetter(ctx context.Context, d amqp.Delivery) error {
	return c.ch.PublishWithContext(ctx,
		"", // default exchange routes by queue name
		c.topology.DeadLetterQueue(),
		false,
		false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    d.MessageId,
			Body:         d.Body,
		},
	)
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.log.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("Failed to ack delivery")
	}
}

func (c *Consumer) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		c.log.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("Failed to nack delivery")
	}
}
