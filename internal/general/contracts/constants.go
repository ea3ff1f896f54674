package contracts

// Exchanges
const (
	ExchangeDriverTopic = "driver_topic"
)

// Routing patterns
const (
	RouteDriverStatusPrefix   = "driver.status."   // {driver_id}
	RouteDeliveryStatusPrefix = "delivery.status." // {status}
)

// Persisted key names. Older client builds wrote the token under two other names;
// all three are cleared together.
const (
	KeyAuthToken       = "authToken"
	KeyAuthTokenLegacy = "auth_token"
	KeyTokenLegacy     = "token"
	KeyUser            = "user"
	KeyOnlineStatus    = "driver_online_status"
)

// TokenKeys lists every key a token may have been persisted under, preferred first.
var TokenKeys = []string{KeyAuthToken, KeyAuthTokenLegacy, KeyTokenLegacy}

// Queues
const (
	QueueDriverActivity = "driver_activity" // every presence and delivery transition
)
