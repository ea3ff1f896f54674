package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/general/rabbitmq"
	"courier-driver/internal/ports"
)

var (
	_ ports.Journal = (*Journal)(nil)
	_ ports.Journal = Nop{}
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []rabbitmq.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg rabbitmq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) published() []rabbitmq.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]rabbitmq.Message(nil), p.msgs...)
}

func TestPresencePublishedOnDriverRoute(t *testing.T) {
	pub := &recordingPublisher{}
	j := New(logger.Nop(), pub, "driver-agent", 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.PresenceChanged(ctx, "drv-1", true)
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	msg := pub.published()[0]
	assert.Equal(t, "driver_topic", msg.Exchange)
	assert.Equal(t, "driver.status.drv-1", msg.RoutingKey)
	assert.NotEmpty(t, msg.CorrelationID)

	var body contracts.DriverStatusMessage
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "ONLINE", body.Status)
	assert.Equal(t, "driver-agent", body.Producer)
	assert.Equal(t, msg.CorrelationID, body.CorrelationID)
}

func TestDeliveryStatusRoute(t *testing.T) {
	pub := &recordingPublisher{}
	j := New(logger.Nop(), pub, "driver-agent", 4)

	j.DeliveryStatusChanged(context.Background(), "drv-1", "d1", delivery.StatusPickedUp, "signature")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "delivery.status.picked_up", msgs[0].RoutingKey)
	var body contracts.DeliveryStatusMessage
	require.NoError(t, json.Unmarshal(msgs[0].Body, &body))
	assert.Equal(t, "signature", body.ProofType)
	assert.Equal(t, "d1", body.DeliveryID)
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	j := New(logger.Nop(), &recordingPublisher{}, "driver-agent", 1)

	j.PresenceChanged(context.Background(), "drv-1", true)
	j.PresenceChanged(context.Background(), "drv-1", false)
	assert.Equal(t, 1, j.Dropped())
}

func TestPublishFailureDoesNotStopWorker(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	j := New(logger.Nop(), pub, "driver-agent", 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.PresenceChanged(ctx, "drv-1", true)
	time.Sleep(20 * time.Millisecond)

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	j.PresenceChanged(ctx, "drv-1", false)

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
