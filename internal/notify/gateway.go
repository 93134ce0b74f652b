// Package notify delivers best-effort user notifications for booking and
// visit lifecycle events. Delivery failures never affect booking state.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Event types carried on outbound notifications.
const (
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventVisitReminder        = "VISIT_REMINDER"
)

// Gateway is the outbound notification port. Implementations must be safe
// for concurrent use and must not block the caller on delivery problems.
type Gateway interface {
	Send(ctx context.Context, userID uuid.UUID, title, content, eventType string)
}

type message struct {
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	EventType string    `json:"event_type"`
	SentAt    time.Time `json:"sent_at"`
}

// AmqpGateway publishes notification events to a RabbitMQ topic exchange.
// A downstream push service owns the actual fan-out to devices.
type AmqpGateway struct {
	channel  *amqp.Channel
	conn     *amqp.Connection
	exchange string
	logger   zerolog.Logger
}

func NewAmqpGateway(amqpURL, exchange string, logger zerolog.Logger) (*AmqpGateway, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AmqpGateway{
		channel:  channel,
		conn:     conn,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (g *AmqpGateway) Send(ctx context.Context, userID uuid.UUID, title, content, eventType string) {
	body, err := json.Marshal(message{
		UserID:    userID,
		Title:     title,
		Content:   content,
		EventType: eventType,
		SentAt:    time.Now(),
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("event_type", eventType).Msg("marshal notification")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = g.channel.PublishWithContext(pubCtx, g.exchange, routingKey(eventType), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		g.logger.Warn().Err(err).
			Str("event_type", eventType).
			Stringer("user_id", userID).
			Msg("notification publish failed")
	}
}

func (g *AmqpGateway) Close() {
	if g.channel != nil {
		_ = g.channel.Close()
	}
	if g.conn != nil {
		_ = g.conn.Close()
	}
}

func routingKey(eventType string) string {
	return "notify." + eventType
}

// LogGateway is used when no broker is configured. It records the event in
// the service log and drops it.
type LogGateway struct {
	Logger zerolog.Logger
}

func (g LogGateway) Send(_ context.Context, userID uuid.UUID, title, content, eventType string) {
	g.Logger.Info().
		Stringer("user_id", userID).
		Str("event_type", eventType).
		Str("title", title).
		Str("content", content).
		Msg("notification (no broker configured)")
}
