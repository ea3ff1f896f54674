package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Envelope adds cross-cutting headers all journal messages carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // Correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // Producer name, e.g. "driver-agent"
	SentAt        time.Time `json:"sent_at,omitzero"`         // send time (UTC)
}

// NewEnvelope stamps a fresh correlation id and send time.
func NewEnvelope(producer string) Envelope {
	return Envelope{
		CorrelationID: uuid.NewString(),
		Producer:      producer,
		SentAt:        time.Now().UTC(),
	}
}
