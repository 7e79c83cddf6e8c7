package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"soutenance/pkg/domain"
)

const defaultExchange = "soutenance.notifications"

// event is the message body published for every notification.
type event struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ActionType string    `json:"action_type"`
	CreatedAt  time.Time `json:"creation_date"`
}

// AMQPPublisher publishes notifications to a durable topic exchange.
// Routing keys are "notification.<action_type>".
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends one persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, n domain.Notification, recipient domain.User) error {
	msg, err := publishing(n, recipient)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey(n), false, false, msg); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

// Close releases the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.ch.Close(), p.conn.Close())
}

func routingKey(n domain.Notification) string {
	action := strings.TrimSpace(n.ActionType)
	if action == "" {
		action = "general"
	}
	return "notification." + action
}

func publishing(n domain.Notification, recipient domain.User) (amqp.Publishing, error) {
	body, err := json.Marshal(event{
		ID:         n.ID,
		UserID:     n.UserID,
		Email:      recipient.Email,
		Role:       string(recipient.Role),
		Title:      n.Title,
		Message:    n.Message,
		ActionType: n.ActionType,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode notification: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    n.CreatedAt,
		Type:         n.ActionType,
		Body:         body,
	}, nil
}
