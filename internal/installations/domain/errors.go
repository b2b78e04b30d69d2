package installations

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIllegalTransition is returned on a status move the lifecycle does not allow.
	ErrIllegalTransition = errors.New("installations: illegal status transition")
	// ErrUnknownStatus is returned when a target status is not a lifecycle state.
	ErrUnknownStatus = errors.New("installations: unknown status")
	// ErrRecordNotFound is returned when a record cannot be found.
	ErrRecordNotFound = errors.New("installations: record not found")
	// ErrDuplicateRequest is returned when a second record would link the same intake request.
	ErrDuplicateRequest = errors.New("installations: record already exists for request")
	// ErrNilRecord is returned when a nil record is persisted.
	ErrNilRecord = errors.New("installations: nil record")
	// ErrEmptyRecordID is returned when a record id is empty.
	ErrEmptyRecordID = errors.New("installations: empty record id")
)

// BlockingTracker identifies one checklist holding back a commissioning
// transition, with enough detail for the caller to surface a remediation path.
type BlockingTracker struct {
	TemplateName string `json:"template_name"`
	Percentage   int    `json:"percentage"`
}

// CommissioningBlockedError is the gate rejection. It is recoverable: the
// caller retries the transition after the blocking checklists are completed.
type CommissioningBlockedError struct {
	RecordID string
	Target   string
	Blocking []BlockingTracker
}

// Error implements error.
func (e *CommissioningBlockedError) Error() string {
	if e == nil {
		return "installations: commissioning blocked"
	}
	parts := make([]string, 0, len(e.Blocking))
	for _, tracker := range e.Blocking {
		parts = append(parts, fmt.Sprintf("%s at %d%%", tracker.TemplateName, tracker.Percentage))
	}
	return fmt.Sprintf("installations: commissioning blocked for record %s -> %s: %s",
		e.RecordID, e.Target, strings.Join(parts, ", "))
}
