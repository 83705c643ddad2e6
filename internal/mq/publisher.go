package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Questionary/internal/domain"
)

// Message - конверт доменного события в очереди.
type Message struct {
	// ID - уникальный идентификатор сообщения. Потребитель
	// использует его для отбрасывания повторных доставок.
	ID string `json:"id"`

	Type domain.EventType `json:"type"`

	// Payload - JSON одного из domain.*Event.
	Payload json.RawMessage `json:"payload"`

	Timestamp time.Time `json:"timestamp"`
}

// NewMessage упаковывает payload в новый конверт.
func NewMessage(eventType domain.EventType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publisher публикует доменные события в RabbitMQ.
type Publisher struct {
	conn     *Connection
	logger   *slog.Logger
	exchange Exchange
}

// NewPublisher создаёт Publisher, пишущий в ExchangeEvents.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:     conn,
		logger:   logger,
		exchange: ExchangeEvents,
	}
}

// Publish публикует сообщение с routing key, равным типу события.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	routingKey := string(msg.Type)

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(p.exchange),
			routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, routingKey, err)
		}

		p.logger.Debug("published event",
			"exchange", p.exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
		)
		return nil
	})
}

// PublishEvent упаковывает и публикует доменное событие.
func (p *Publisher) PublishEvent(ctx context.Context, eventType domain.EventType, payload any) error {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}
