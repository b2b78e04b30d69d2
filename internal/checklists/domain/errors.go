package checklists

import "errors"

var (
	// ErrEmptyName is returned when a template name is empty.
	ErrEmptyName = errors.New("checklists: empty template name")
	// ErrInvalidPhase is returned when the phase tag is unsupported.
	ErrInvalidPhase = errors.New("checklists: invalid phase")
	// ErrNoItems is returned when a template declares no items.
	ErrNoItems = errors.New("checklists: template has no items")
	// ErrEmptyItemID is returned when an item id is empty.
	ErrEmptyItemID = errors.New("checklists: empty item id")
	// ErrDuplicateItemID is returned when item ids repeat within a template.
	ErrDuplicateItemID = errors.New("checklists: duplicate item id")
	// ErrInvalidPhotoCount is returned when requires_photo is set without a positive photo count.
	ErrInvalidPhotoCount = errors.New("checklists: photo count must be >= 1 when photo is required")
	// ErrTemplateNotFound is returned when a template cannot be found.
	ErrTemplateNotFound = errors.New("checklists: template not found")
	// ErrTrackerNotFound is returned when a tracker cannot be found.
	ErrTrackerNotFound = errors.New("checklists: tracker not found")
	// ErrDuplicateTracker is returned when a tracker already exists for a record/template pair.
	ErrDuplicateTracker = errors.New("checklists: tracker already exists for record and template")
	// ErrUnknownItem is returned when evidence targets an item the template does not declare.
	ErrUnknownItem = errors.New("checklists: unknown checklist item")
	// ErrNilTemplate is returned when a nil template is persisted.
	ErrNilTemplate = errors.New("checklists: nil template")
	// ErrNilTracker is returned when a nil tracker is persisted.
	ErrNilTracker = errors.New("checklists: nil tracker")
)
