package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue the notification worker consumes.
const DefaultQueue = "adminhub.notifications"

// Notification is a mail job published to the queue. Delivery is handled
// by an out-of-process worker; the backend only enqueues.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mailer publishes notification jobs over RabbitMQ.
type Mailer struct {
	conn  *amqp.Connection
	chn   *amqp.Channel
	queue string
}

// New dials RabbitMQ, opens a channel, and declares the durable queue.
func New(url, queue string) (*Mailer, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	chn, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = chn.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		chn.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &Mailer{
		conn:  conn,
		chn:   chn,
		queue: queue,
	}, nil
}

// Publish enqueues one notification as a persistent JSON message.
func (m *Mailer) Publish(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return m.chn.PublishWithContext(
		ctx,
		"",      // default exchange
		m.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Body:         body,
		},
	)
}

// Close releases the channel and connection.
func (m *Mailer) Close() error {
	if err := m.chn.Close(); err != nil {
		return err
	}
	return m.conn.Close()
}
