package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeBatches Exchange = "restavrator.batches"
	ExchangeRuns    Exchange = "restavrator.runs"
	ExchangeDLQ     Exchange = "restavrator.dlq"
)

// Queues — имена очередей.
const (
	QueueBatchesSubmitted Queue = "batches.submitted"
	QueueBatchesEvents    Queue = "batches.events"
	QueueRunsEvents       Queue = "runs.events"
	QueueDLQBatches       Queue = "dlq.batches"
)

// Routing keys.
const (
	RoutingKeySubmitted  RoutingKey = "submitted"
	RoutingKeyEvent      RoutingKey = "event"
	RoutingKeyFinished   RoutingKey = "finished"
	RoutingKeyDLQBatches RoutingKey = "batches"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeBatches, "direct"},
		{ExchangeRuns, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Некорректные сабмиты уходят в DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQBatches),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// batches.submitted — с DLQ (битый сабмит разбирается вручную)
		{QueueBatchesSubmitted, dlqArgs},

		// batches.events — события для внешних подписчиков, без DLQ
		{QueueBatchesEvents, nil},

		// runs.events — события завершения runs, без DLQ
		{QueueRunsEvents, nil},

		// dlq.batches — сама DLQ очередь
		{QueueDLQBatches, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueBatchesSubmitted, RoutingKeySubmitted, ExchangeBatches},
		{QueueBatchesEvents, RoutingKeyEvent, ExchangeBatches},
		{QueueRunsEvents, RoutingKeyFinished, ExchangeRuns},
		{QueueDLQBatches, RoutingKeyDLQBatches, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
