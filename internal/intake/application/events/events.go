package events

import "time"

// RequestReceived carries one upstream intake request create-or-update.
// Delivery is at-least-once; RequestID is the stable key consumers
// deduplicate on. Legacy fields hold values from the old intake forms and
// lose to the explicit fields when both are present.
type RequestReceived struct {
	EventID       string    `json:"event_id"`
	RequestID     string    `json:"request_id"`
	TenantID      string    `json:"tenant_id"`
	Status        string    `json:"status"`
	Kind          string    `json:"kind"`
	LegacyKind    string    `json:"legacy_kind,omitempty"`
	SizeMagnitude float64   `json:"size_magnitude,omitempty"`
	SizeUnit      string    `json:"size_unit,omitempty"`
	LegacySize    string    `json:"legacy_size,omitempty"`
	CustomerID    string    `json:"customer_id"`
	OrderID       string    `json:"order_id,omitempty"`
	Address       string    `json:"address,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Technicians   []string  `json:"technicians,omitempty"`
	MonitoringID  string    `json:"monitoring_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
