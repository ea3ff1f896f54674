// Package journal publishes the driver's presence changes and confirmed
// delivery transitions to the driver_topic exchange. Publishing happens on a
// background worker so a slow or absent broker never stalls the driver.
package journal

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/rabbitmq"
)

const defaultBuffer = 64

// Journal is a ports.Journal backed by a rabbitmq.Publisher.
type Journal struct {
	logger   *logger.Logger
	pub      rabbitmq.Publisher
	producer string

	queue chan rabbitmq.Message

	mu      sync.Mutex
	dropped int
}

// New builds a journal with room for buffer pending messages. Run must be
// started for anything to be published.
func New(log *logger.Logger, pub rabbitmq.Publisher, producer string, buffer int) *Journal {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Journal{
		logger:   log,
		pub:      pub,
		producer: producer,
		queue:    make(chan rabbitmq.Message, buffer),
	}
}

// Run publishes queued messages until ctx ends, then drains what is left
// with a short deadline.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-j.queue:
			j.publish(ctx, msg)
		case <-ctx.Done():
			j.drain()
			return nil
		}
	}
}

func (j *Journal) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-j.queue:
			if ctx.Err() != nil {
				j.countDrop()
				continue
			}
			j.publish(ctx, msg)
		default:
			return
		}
	}
}

func (j *Journal) publish(ctx context.Context, msg rabbitmq.Message) {
	if err := j.pub.Publish(ctx, msg); err != nil {
		j.logger.Warn(ctx, "journal_publish_failed", "Failed to publish journal message", map[string]any{
			"exchange": msg.Exchange, "routing_key": msg.RoutingKey, "request_id": msg.CorrelationID, "error": err.Error(),
		})
		return
	}
	j.logger.Debug(ctx, "journal_published", "Journal message published", map[string]any{"routing_key": msg.RoutingKey})
}

// Dropped counts messages lost to a full buffer or shutdown.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *Journal) countDrop() {
	j.mu.Lock()
	j.dropped++
	j.mu.Unlock()
}

// PresenceChanged publishes a DriverStatusMessage on driver.status.{driver_id}.
func (j *Journal) PresenceChanged(ctx context.Context, driverID string, online bool) {
	status := "OFFLINE"
	if online {
		status = "ONLINE"
	}
	msg := contracts.DriverStatusMessage{
		DriverID:  driverID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Envelope:  contracts.NewEnvelope(j.producer),
	}
	j.enqueue(ctx, contracts.RouteDriverStatusPrefix+driverID, msg.CorrelationID, msg)
}

// DeliveryStatusChanged publishes a DeliveryStatusMessage on delivery.status.{status}.
func (j *Journal) DeliveryStatusChanged(ctx context.Context, driverID, deliveryID string, status delivery.Status, proofType string) {
	msg := contracts.DeliveryStatusMessage{
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Status:     status.String(),
		ProofType:  proofType,
		Timestamp:  time.Now().UTC(),
		Envelope:   contracts.NewEnvelope(j.producer),
	}
	j.enqueue(ctx, contracts.RouteDeliveryStatusPrefix+strings.ToLower(status.String()), msg.CorrelationID, msg)
}

func (j *Journal) enqueue(ctx context.Context, key, corrID string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		j.logger.Error(ctx, "journal_encode_failed", "Failed to encode journal message", err, map[string]any{"routing_key": key})
		return
	}
	msg := rabbitmq.Message{
		Exchange:      contracts.ExchangeDriverTopic,
		RoutingKey:    key,
		Body:          body,
		CorrelationID: corrID,
	}
	select {
	case j.queue <- msg:
	default:
		j.countDrop()
		j.logger.Warn(ctx, "journal_buffer_full", "Journal buffer full; message dropped", map[string]any{"routing_key": key})
	}
}

// Nop is a journal that records nothing, used when the broker is disabled.
type Nop struct{}

func (Nop) PresenceChanged(context.Context, string, bool) {}

func (Nop) DeliveryStatusChanged(context.Context, string, string, delivery.Status, string) {}
