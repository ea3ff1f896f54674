package ports

// Screen routes.
const (
	RouteLogin      = "/login"
	RouteDashboard  = "/"
	RouteDeliveries = "/deliveries"
	RouteHistory    = "/history"
)

// RouteDelivery is the delivery detail screen.
func RouteDelivery(id string) string { return "/delivery/" + id }

// RouteMap is the turn-by-turn screen for an active delivery.
func RouteMap(id string) string { return "/map/" + id }
