package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestRabbitMQ_PublishOrderEvent(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newRabbitMQ(ch, "shop.orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.orders:topic"}, ch.declared)

	e := OrderEvent{
		OrderID:    42,
		Type:       OrderStatusChanged,
		Status:     "cancelled",
		OldStatus:  "pending",
		Total:      decimal.RequireFromString("65.00"),
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishOrderEvent(context.Background(), e))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "shop.orders", got.exchange)
	assert.Equal(t, "order.status_changed", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, float64(42), body["order_id"])
	assert.Equal(t, "pending", body["old_status"])
	assert.Equal(t, "65", body["total"])
}

func TestRabbitMQ_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := newRabbitMQ(ch, "shop.orders")
	require.NoError(t, err)

	err = p.PublishOrderEvent(context.Background(), OrderEvent{OrderID: 1, Type: OrderDeleted})
	assert.ErrorContains(t, err, "order.deleted")
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.PublishOrderEvent(context.Background(), OrderEvent{}))
	assert.NoError(t, p.Close())
}
