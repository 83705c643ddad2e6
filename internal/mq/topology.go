package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange - тип для имени обменника.
type Exchange string

// Queue - тип для имени очереди.
type Queue string

// RoutingKey - тип для ключа маршрутизации.
type RoutingKey string

// Exchanges - имена обменников.
const (
	// ExchangeEvents - topic-обменник доменных событий.
	// Routing key совпадает с domain.EventType.
	ExchangeEvents Exchange = "questionary.events"
	ExchangeDLQ    Exchange = "questionary.dlq"
)

// Queues - имена очередей.
const (
	QueueEventLog  Queue = "events.log"
	QueueDLQEvents Queue = "dlq.events"
)

// Routing keys.
const (
	// RoutingKeyAllEvents подписывает очередь на все типы событий.
	RoutingKeyAllEvents RoutingKey = "#"
	RoutingKeyDLQEvents RoutingKey = "events"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var exchanges = []exchangeDecl{
	{ExchangeEvents, amqp.ExchangeTopic},
	{ExchangeDLQ, amqp.ExchangeDirect},
}

var queues = []queueDecl{
	// events.log - отклонённые сообщения уходят в dlq.events
	{QueueEventLog, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
	}},
	{QueueDLQEvents, nil},
}

var bindings = []binding{
	{QueueEventLog, RoutingKeyAllEvents, ExchangeEvents},
	{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
}

// SetupTopology объявляет обменники и очереди. Операции идемпотентны,
// поэтому её вызывают и API, и потребитель при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
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
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Questionary RabbitMQ Topology:

    questionary.events (topic)
    └── events.log [routing: #]
            Consumer: questionary-events
            DLQ: dlq.events

    questionary.dlq (direct)
    └── dlq.events [routing: events]
            Manual processing
`
}
