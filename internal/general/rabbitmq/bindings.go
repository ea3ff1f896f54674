package rabbitmq

import (
	"fmt"

	"courier-driver/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology makes sure the journal exchange and its activity queue exist.
// Declarations are idempotent, so every reconnect re-runs them.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeDriverTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeDriverTopic, err)
	}

	if _, err := ch.QueueDeclare(contracts.QueueDriverActivity, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", contracts.QueueDriverActivity, err)
	}

	for _, key := range []string{
		contracts.RouteDriverStatusPrefix + "*",
		contracts.RouteDeliveryStatusPrefix + "*",
	} {
		if err := ch.QueueBind(contracts.QueueDriverActivity, key, contracts.ExchangeDriverTopic, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s (%s): %w", contracts.QueueDriverActivity, contracts.ExchangeDriverTopic, key, err)
		}
	}
	return nil
}
