package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("rabbitmq: connection is not open")
	ErrNacked       = errors.New("rabbitmq: publish not acknowledged")
)

const publishTimeout = 5 * time.Second

// Message is one journal publication.
type Message struct {
	Exchange      string
	RoutingKey    string
	Body          []byte
	CorrelationID string // defaults to a fresh UUID
}

// Publisher is what the journal needs from the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// MQPublisher publishes through a Client's confirm-mode channel.
type MQPublisher struct {
	Client  *Client
	AppID   string
	Timeout time.Duration
}

// NewMQPublisher constructs an MQPublisher using the provided RabbitMQ client.
func NewMQPublisher(client *Client, appID string) *MQPublisher {
	return &MQPublisher{Client: client, AppID: appID, Timeout: publishTimeout}
}

// Publish sends msg and waits for the broker's confirm.
func (publisher *MQPublisher) Publish(ctx context.Context, msg Message) error {
	return publisher.Client.PublishMessage(ctx, publisher.publishing(msg), msg.Exchange, msg.RoutingKey, publisher.Timeout)
}

func (publisher *MQPublisher) publishing(msg Message) amqp.Publishing {
	corr := msg.CorrelationID
	if corr == "" {
		corr = uuid.NewString()
	}
	return amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: corr,
		AppId:         publisher.AppID,
		Timestamp:     time.Now().UTC(),
		Body:          msg.Body,
	}
}

// PublishMessage publishes one message and blocks until it is confirmed, nacked,
// or timeout passes.
func (client *Client) PublishMessage(ctx context.Context, pub amqp.Publishing, exchange, routingKey string, timeout time.Duration) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	if timeout <= 0 {
		timeout = publishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx, exchange, routingKey, true /* mandatory */, false /* immediate */, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish %s/%s: %w", exchange, routingKey, err)
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !c.Ack {
			return ErrNacked
		}
	case <-ctx.Done():
		// drain one confirm so the stream stays aligned with the next publish
		select {
		case c, ok := <-confirms:
			if ok && !c.Ack {
				return ErrNacked
			}
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}

	return nil
}
