package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// EventType names an order lifecycle change.
type EventType string

const (
	OrderCreated       EventType = "created"
	OrderUpdated       EventType = "updated"
	OrderStatusChanged EventType = "status_changed"
	OrderDeleted       EventType = "deleted"
)

// OrderEvent is published after an order mutation has committed.
type OrderEvent struct {
	OrderID    int             `json:"order_id"`
	Type       EventType       `json:"type"`
	Status     string          `json:"status"`
	OldStatus  string          `json:"old_status,omitempty"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RoutingKey is "order.<type>".
func (e OrderEvent) RoutingKey() string {
	return "order." + string(e.Type)
}

// Publisher delivers order events. Delivery is best effort: callers log
// failures and never undo the committed operation.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, e OrderEvent) error
	Close() error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
func (Noop) Close() error                                      { return nil }

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes events as persistent JSON messages to a durable topic exchange.
type RabbitMQ struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	timeout  time.Duration
	mu       sync.Mutex
}

// DialRabbitMQ connects to url and declares exchange.
func DialRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	p, err := newRabbitMQ(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newRabbitMQ(ch channel, exchange string) (*RabbitMQ, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQ{ch: ch, exchange: exchange, timeout: 5 * time.Second}, nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, e OrderEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.ch.PublishWithContext(ctx,
		r.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    e.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.RoutingKey(), err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
