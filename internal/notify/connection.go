package notify

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	// ExchangeType is a direct exchange: one queue, one fixed routing key
	ExchangeType = "direct"
	// RoutingKey binds the notification queue to the exchange
	RoutingKey = "trade.executed"

	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// Topology names the broker resources used by publisher and consumer
type Topology struct {
	Exchange string
	Queue    string
}

// DeadLetterQueue returns the queue name poison messages are parked on
func (t Topology) DeadLetterQueue() string {
	return t.Queue + ".dead"
}

// Conn wraps one AMQP connection and channel with the declared topology
type Conn struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	topology Topology
}

// Dial connects to the broker and declares the exchange, queues and binding.
// Declaration is idempotent: redeclaring identical durable resources is safe.
// Construction fails fast when the broker is unreachable after a few
// attempts; the caller decides whether to substitute a no-op publisher.
func Dial(url string, topology Topology, log zerolog.Logger) (*Conn, error) {
	var conn *amqp.Connection
	var err error

	// Short retry for broker/container startup races
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to broker")
		time.Sleep(dialBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	if err := declareTopology(ch, topology); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Conn{conn: conn, ch: ch, topology: topology}, nil
}

func declareTopology(ch *amqp.Channel, topology Topology) error {
	err := ch.ExchangeDeclare(
		topology.Exchange,
		ExchangeType,
		true,  // durable: survives broker restart
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		topology.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not declare queue: %w", err)
	}

	// Parking spot for messages that repeatedly fail to parse
	_, err = ch.QueueDeclare(
		topology.DeadLetterQueue(),
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not declare dead letter queue: %w", err)
	}

	err = ch.QueueBind(
		topology.Queue,
		RoutingKey,
		topology.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not bind queue: %w", err)
	}

	return nil
}

// Channel returns the underlying AMQP channel
func (c *Conn) Channel() *amqp.Channel {
	return c.ch
}

// Topology returns the declared broker resources
func (c *Conn) Topology() Topology {
	return c.topology
}

// Close closes the channel and connection
func (c *Conn) Close() error {
	if err := c.ch.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}
