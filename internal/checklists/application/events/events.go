package events

import "time"

// TrackerItemUpdated is published after a per-item evidence submission commits.
type TrackerItemUpdated struct {
	EventID    string    `json:"event_id"`
	TrackerID  string    `json:"tracker_id"`
	RecordID   string    `json:"record_id"`
	ItemID     string    `json:"item_id"`
	Completed  bool      `json:"completed"`
	Percentage int       `json:"percentage"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TrackerCompleted is published when a tracker first reaches full completion.
type TrackerCompleted struct {
	EventID      string    `json:"event_id"`
	TrackerID    string    `json:"tracker_id"`
	RecordID     string    `json:"record_id"`
	TemplateName string    `json:"template_name"`
	OccurredAt   time.Time `json:"occurred_at"`
}
