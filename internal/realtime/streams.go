package realtime

// Named realtime streams surfaced to the dashboard.
const (
	StreamBaskets   = "baskets"
	StreamTelemetry = "telemetry"
	StreamAlerts    = "alerts"
	StreamCameras   = "cameras"
	StreamOrders    = "orders"
)

// Event names published on the streams above.
const (
	EventBasketUpdated   = "basket.updated"
	EventTelemetryReport = "telemetry.report"
	EventAlertRaised     = "alert.raised"
	EventAlertResolved   = "alert.resolved"
	EventCameraStatus    = "camera.status"
	EventCameraFrame     = "camera.frame"
	EventOrderStatus     = "order.status"
)

var knownStreams = map[string]struct{}{
	StreamBaskets:   {},
	StreamTelemetry: {},
	StreamAlerts:    {},
	StreamCameras:   {},
	StreamOrders:    {},
}

// KnownStream reports whether a stream name is one the hub publishes.
func KnownStream(stream string) bool {
	_, ok := knownStreams[normalizeStream(stream)]
	return ok
}

// Streams returns the full set of publishable stream names.
func Streams() []string {
	return []string{StreamBaskets, StreamTelemetry, StreamAlerts, StreamCameras, StreamOrders}
}
