package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "events"
	ExchangeKind    = "topic"
)

// Routing keys published by the booking engine
const (
	BookingPaid      = "booking.paid"
	BookingCancelled = "booking.cancelled"
	BookingFailed    = "booking.failed"
	BookingExpired   = "booking.expired"
)

// Publisher sends domain events to downstream collaborators (notifications, reporting)
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close()
}

// RabbitPublisher publishes JSON messages to a topic exchange
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitPublisher dials RabbitMQ and declares the exchange
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish marshals payload and publishes it under routingKey
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

// Close closes the channel and connection
func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher drops every event. Used when RABBITMQ_URL is unset.
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return nil
}

// Close does nothing
func (NopPublisher) Close() {}

// BookingEvent is the payload of every booking.* event
type BookingEvent struct {
	BookingID    string    `json:"bookingId"`
	ResourceID   string    `json:"resourceId"`
	ResourceKind string    `json:"resourceKind"`
	SlotNumber   int       `json:"slotNumber"`
	StudentID    string    `json:"studentId"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"paymentStatus"`
	PaymentRef   string    `json:"paymentRef,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
