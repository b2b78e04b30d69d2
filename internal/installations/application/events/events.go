package events

import "time"

// RecordStatusChanged is published after a lifecycle transition commits.
type RecordStatusChanged struct {
	EventID    string    `json:"event_id"`
	RecordID   string    `json:"record_id"`
	RequestID  string    `json:"request_id"`
	TenantID   string    `json:"tenant_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordCreated is published when the synthesizer materializes a new record.
type RecordCreated struct {
	EventID    string    `json:"event_id"`
	RecordID   string    `json:"record_id"`
	RequestID  string    `json:"request_id"`
	TenantID   string    `json:"tenant_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
