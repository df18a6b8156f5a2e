package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/quantfold/tradewire/internal/modules/trading"
)

// Publisher delivers trade notifications to the durable exchange.
// A single AMQP channel is not safe for concurrent publishing, so calls are
// serialized with a mutex; execution requests publish concurrently.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	topology Topology
	log      zerolog.Logger
}

// Compile-time check that Publisher satisfies the execution service contract
var _ trading.NotificationPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher over an established broker connection
func NewPublisher(conn *Conn, log zerolog.Logger) *Publisher {
	return &Publisher{
		ch:       conn.Channel(),
		topology: conn.Topology(),
		log:      log.With().Str("component", "publisher").Logger(),
	}
}

// PublishTrade sends one persistent notification message for an executed
// trade. No retry or backoff is attempted inside a single call: a failed
// publish is reported once to the caller.
func (p *Publisher) PublishTrade(ctx context.Context, trade trading.Trade) error {
	msg := NewMessage(trade)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.topology.Exchange,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish notification: %w", err)
	}

	p.log.Debug().
		Int64("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Msg("Notification published")

	return nil
}

// NoopPublisher logs the would-be notification and reports success. It is the
// fallback when the broker is unreachable at startup: trades keep executing
// while notifications are knowingly dropped.
type NoopPublisher struct {
	log zerolog.Logger
}

var _ trading.NotificationPublisher = (*NoopPublisher)(nil)

// NewNoopPublisher creates the no-op fallback publisher
func NewNoopPublisher(log zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{
		log: log.With().Str("component", "noop_publisher").Logger(),
	}
}

// PublishTrade logs the notification instead of sending it
func (p *NoopPublisher) PublishTrade(_ context.Context, trade trading.Trade) error {
	p.log.Warn().
		Int64("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Msg("Broker unavailable, notification dropped")
	return nil
}
