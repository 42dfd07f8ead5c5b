package events

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcrabbit "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestAMQPNotifier_Broker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcrabbit.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start RabbitMQ container")
	defer func() { _ = container.Terminate(ctx) }()

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := DialAMQP(url, "ft.events")
	require.NoError(t, err)
	defer conn.Close()

	ch := conn.Channel()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "token.#", "ft.events", false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	NewAMQPNotifier(ch, "ft.events", nil).
		Notify(ctx, transferEvent("e1", 4, "alice", "bob", "300"))

	var d amqp.Delivery
	select {
	case d = <-deliveries:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	assert.Equal(t, "token.ft_transfer", d.RoutingKey)
	assert.Equal(t, "e1", d.MessageId)

	e, err := Decode(string(d.Body))
	require.NoError(t, err)
	assert.Equal(t, "300", e.Transfers[0].Amount)
}
