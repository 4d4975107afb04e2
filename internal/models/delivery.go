package models

// ═══════════════════════════════════════════════════════════
// DELIVERY MODELS
// ═══════════════════════════════════════════════════════════

// Coordinate is a WGS84 point in floating point degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DeliveryQuote is the computed distance and fare for one destination.
// Km is the ceiling of the great-circle distance.
type DeliveryQuote struct {
	Km    int `json:"km"`
	Price int `json:"price"`
}

// Quote failure kinds.
const (
	QuoteNotFound        = "NOT_FOUND"
	QuoteInvalidDistance = "INVALID_DISTANCE"
	QuoteUpstreamError   = "UPSTREAM_ERROR"
)

// QuoteError is a typed delivery-quote failure.
type QuoteError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *QuoteError) Error() string {
	return e.Kind + ": " + e.Message
}
