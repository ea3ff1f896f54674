package rabbitmq

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/general/config"
	"courier-driver/internal/general/contracts"
)

func TestURLEscapesCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.RabbitMQ.Host = "broker.local"
	cfg.RabbitMQ.Port = 5673
	cfg.RabbitMQ.User = "courier"
	cfg.RabbitMQ.Password = "p@ss/word"

	raw := URL(cfg)
	assert.True(t, strings.HasPrefix(raw, "amqp://courier:"))
	assert.Contains(t, raw, "@broker.local:5673")
	assert.NotContains(t, raw, "p@ss/word")
	assert.NotContains(t, redact(raw), "p%40ss")
}

func TestNextBackoffIsCapped(t *testing.T) {
	b := time.Second
	for range 10 {
		b = nextBackoff(b, 30*time.Second)
	}
	assert.Equal(t, 30*time.Second, b)
	assert.Equal(t, 4*time.Second, nextBackoff(2*time.Second, 30*time.Second))
}

func TestPublishingCarriesIdentifiers(t *testing.T) {
	p := NewMQPublisher(&Client{}, "driver-agent")
	pub := p.publishing(Message{Body: []byte(`{}`), CorrelationID: "corr-1"})
	assert.Equal(t, "corr-1", pub.CorrelationId)
	assert.NotEmpty(t, pub.MessageId)
	assert.Equal(t, "driver-agent", pub.AppId)
	assert.Equal(t, "application/json", pub.ContentType)

	pub = p.publishing(Message{Body: []byte(`{}`)})
	assert.NotEmpty(t, pub.CorrelationId)
}

func TestPublishWithoutConnection(t *testing.T) {
	p := NewMQPublisher(&Client{}, "driver-agent")
	err := p.Publish(context.Background(), Message{Exchange: "driver_topic", RoutingKey: "driver.status.d1"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDecodeJournalByRoutingKey(t *testing.T) {
	body, err := json.Marshal(contracts.DriverStatusMessage{DriverID: "drv-1", Status: "ONLINE"})
	require.NoError(t, err)
	entry, err := DecodeJournal("driver.status.drv-1", body)
	require.NoError(t, err)
	require.NotNil(t, entry.Presence)
	assert.Nil(t, entry.Delivery)
	assert.Equal(t, "ONLINE", entry.Presence.Status)
	assert.Equal(t, "drv-1", entry.DriverID())

	body, err = json.Marshal(contracts.DeliveryStatusMessage{DeliveryID: "d1", DriverID: "drv-1", Status: "delivered", ProofType: "signature"})
	require.NoError(t, err)
	entry, err = DecodeJournal("delivery.status.delivered", body)
	require.NoError(t, err)
	require.NotNil(t, entry.Delivery)
	assert.Equal(t, "signature", entry.Delivery.ProofType)
	assert.Equal(t, "drv-1", entry.DriverID())
}

func TestDecodeJournalRejectsBadMessages(t *testing.T) {
	_, err := DecodeJournal("ride.status.x", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownJournalKind)

	_, err = DecodeJournal("driver.status.drv-1", []byte("nope"))
	assert.Error(t, err)

	_, err = DecodeJournal("delivery.status.delivered", []byte(`{"driver_id":"drv-1"}`))
	assert.Error(t, err)
}

func TestConsumeOptionsDefaults(t *testing.T) {
	opts := ConsumeOptions{Prefetch: -3}
	opts.applyDefaults()
	assert.Equal(t, contracts.QueueDriverActivity, opts.Queue)
	assert.Equal(t, 1, opts.Prefetch)
	assert.Equal(t, 30*time.Second, opts.HandlerTimeout)
}

func TestConsumeJournalWithoutConnection(t *testing.T) {
	err := (&Client{}).ConsumeJournal(context.Background(), ConsumeOptions{}, func(context.Context, JournalEntry) error { return nil })
	require.ErrorIs(t, err, ErrNotConnected)
}
