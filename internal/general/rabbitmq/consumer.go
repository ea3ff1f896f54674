package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"courier-driver/internal/general/contracts"
)

var ErrUnknownJournalKind = errors.New("rabbitmq: routing key is not a journal route")

// JournalEntry is one decoded journal message. Exactly one of Presence and
// Delivery is set.
type JournalEntry struct {
	RoutingKey string
	MessageID  string
	Presence   *contracts.DriverStatusMessage
	Delivery   *contracts.DeliveryStatusMessage
}

// DriverID is the driver the entry is about.
func (e JournalEntry) DriverID() string {
	if e.Presence != nil {
		return e.Presence.DriverID
	}
	if e.Delivery != nil {
		return e.Delivery.DriverID
	}
	return ""
}

// DecodeJournal picks the payload type from the routing key.
func DecodeJournal(routingKey string, body []byte) (JournalEntry, error) {
	entry := JournalEntry{RoutingKey: routingKey}
	switch {
	case strings.HasPrefix(routingKey, contracts.RouteDriverStatusPrefix):
		var m contracts.DriverStatusMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return entry, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		entry.Presence = &m
	case strings.HasPrefix(routingKey, contracts.RouteDeliveryStatusPrefix):
		var m contracts.DeliveryStatusMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return entry, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		if m.DeliveryID == "" {
			return entry, fmt.Errorf("decode %s: delivery_id missing", routingKey)
		}
		entry.Delivery = &m
	default:
		return entry, fmt.Errorf("%w: %q", ErrUnknownJournalKind, routingKey)
	}
	return entry, nil
}

// ConsumeOptions configure a journal consumer.
type ConsumeOptions struct {
	Queue          string // defaults to contracts.QueueDriverActivity
	ConsumerTag    string
	Prefetch       int           // 0 leaves the broker default
	HandlerTimeout time.Duration // defaults to 30s
}

func (o *ConsumeOptions) applyDefaults() {
	if o.Queue == "" {
		o.Queue = contracts.QueueDriverActivity
	}
	if o.Prefetch < 0 {
		o.Prefetch = 1
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 30 * time.Second
	}
}

// consumerChannel opens a channel dedicated to one consumer.
func (client *Client) consumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}
	return ch, nil
}

// ConsumeJournal streams decoded journal entries to handle until ctx ends or
// the channel closes. Undecodable bodies and handler errors are nacked
// without requeue; everything else is acked.
func (client *Client) ConsumeJournal(ctx context.Context, opts ConsumeOptions, handle func(context.Context, JournalEntry) error) error {
	opts.applyDefaults()

	ch, err := client.consumerChannel(opts.Prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", opts.Queue, err)
	}
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	client.logger.Info(client.logCtx, "journal_consumer_started", "Consuming driver journal", map[string]any{
		"queue": opts.Queue, "prefetch": opts.Prefetch,
	})

	for {
		select {
		case <-ctx.Done():
			if opts.ConsumerTag != "" {
				_ = ch.Cancel(opts.ConsumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", opts.Queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := client.dispatch(ctx, opts.HandlerTimeout, d, handle); err != nil {
				client.logger.Warn(client.logCtx, "journal_message_rejected", "Dropping journal message", map[string]any{
					"queue": opts.Queue, "routing_key": d.RoutingKey, "message_id": d.MessageId, "error": err.Error(),
				})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (client *Client) dispatch(ctx context.Context, timeout time.Duration, d amqp.Delivery, handle func(context.Context, JournalEntry) error) error {
	entry, err := DecodeJournal(d.RoutingKey, d.Body)
	if err != nil {
		return err
	}
	entry.MessageID = d.MessageId

	hCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return handle(hCtx, entry)
}
