package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/observability"
)

// Publisher is the subset of *amqp.Channel used to publish events.
type Publisher interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
}

// AMQPNotifier publishes every event to a topic exchange. The routing key is
// "token." followed by the event kind.
type AMQPNotifier struct {
	ch       Publisher
	exchange string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAMQPNotifier creates a notifier publishing through ch.
func NewAMQPNotifier(ch Publisher, exchange string, logger *zap.Logger) *AMQPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPNotifier{
		ch:       ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// RoutingKey returns the routing key used for events of kind.
func RoutingKey(kind domain.EventKind) string {
	return "token." + string(kind)
}

// Notify implements Notifier.
func (n *AMQPNotifier) Notify(ctx context.Context, e domain.Event) {
	line, err := Encode(e)
	if err != nil {
		observability.RecordNotifyError("amqp")
		n.logger.Error("encode event", zap.String("event_id", e.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    time.UnixMilli(e.EmittedAt).UTC(),
		Type:         string(e.Kind),
		Headers:      amqp.Table{"nonce": int64(e.Nonce)},
		Body:         []byte(line),
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, RoutingKey(e.Kind), false, false, msg); err != nil {
		observability.RecordNotifyError("amqp")
		n.logger.Error("publish event",
			zap.String("event_id", e.ID),
			zap.String("exchange", n.exchange),
			zap.Error(err),
		)
	}
}

// AMQPConn owns the connection and channel behind an AMQPNotifier.
type AMQPConn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPConn{conn: conn, ch: ch}, nil
}

// Channel returns the publishing channel.
func (c *AMQPConn) Channel() *amqp.Channel {
	return c.ch
}

// Close closes the channel and the connection.
func (c *AMQPConn) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
