package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeBatchSubmitted MessageType = "batch.submitted"
	MessageTypeBatchEvent     MessageType = "batch.event"
	MessageTypeRunFinished    MessageType = "run.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// BatchSubmittedPayload — payload сабмита batch job через очередь.
type BatchSubmittedPayload struct {
	Items       []domain.BatchItem `json:"items"`
	DefaultMode string             `json:"default_mode,omitempty"`
	DelayMs     int64              `json:"delay_ms,omitempty"`
}

// BatchEventPayload — payload события жизненного цикла batch job.
type BatchEventPayload struct {
	Event     string               `json:"event"`
	BatchID   uuid.UUID            `json:"batch_id"`
	Status    domain.BatchStatus   `json:"status"`
	Progress  domain.BatchProgress `json:"progress"`
	Timestamp time.Time            `json:"timestamp"`
}

// RunFinishedPayload — payload события завершения run.
type RunFinishedPayload struct {
	RunID    uuid.UUID         `json:"run_id"`
	BatchID  *uuid.UUID        `json:"batch_id,omitempty"`
	Status   domain.RunStatus  `json:"status"`
	Decision domain.QCDecision `json:"decision,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishBatchEvent публикует событие жизненного цикла batch job.
// Потребители: внешние подписчики batches.events.
func (p *Publisher) PublishBatchEvent(ctx context.Context, payload BatchEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeBatchEvent,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeBatches, RoutingKeyEvent, msg)
}

// PublishRunFinished публикует событие завершения run.
// Потребители: внешние подписчики runs.events.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}

// PublishBatchSubmitted публикует сабмит batch job через очередь.
// Потребитель: сервер (batches.submitted).
func (p *Publisher) PublishBatchSubmitted(ctx context.Context, payload BatchSubmittedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeBatchSubmitted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeBatches, RoutingKeySubmitted, msg)
}
