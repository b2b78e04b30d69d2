package application

import (
	"context"
	"errors"
	"time"

	checklistevents "solarops-cloud/internal/checklists/application/events"
	checklists "solarops-cloud/internal/checklists/domain"
	"solarops-cloud/internal/eventing"
	"solarops-cloud/internal/observability/metrics"
)

// TrackerRepository persists completion trackers.
type TrackerRepository interface {
	Get(ctx context.Context, id string) (*checklists.Tracker, error)
	FindByRecordAndTemplate(ctx context.Context, recordID, templateID string) (*checklists.Tracker, error)
	ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error)
	Save(ctx context.Context, tracker *checklists.Tracker) error
}

// EventPublisher publishes domain events through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// TrackerService provisions trackers and records per-item evidence.
type TrackerService struct {
	trackers  TrackerRepository
	templates TemplateRepository
	publisher EventPublisher
	clock     Clock
}

// NewTrackerService constructs a tracker service.
func NewTrackerService(trackers TrackerRepository, templates TemplateRepository, publisher EventPublisher, clock Clock) (*TrackerService, error) {
	if trackers == nil {
		return nil, errors.New("checklists: nil tracker repo")
	}
	if templates == nil {
		return nil, errors.New("checklists: nil template repo")
	}
	if clock == nil {
		return nil, errors.New("checklists: nil clock")
	}
	return &TrackerService{trackers: trackers, templates: templates, publisher: publisher, clock: clock}, nil
}

// Provision creates a tracker for a (record, template) pair. At most one
// tracker may exist per pair; a second call fails with ErrDuplicateTracker.
func (s *TrackerService) Provision(ctx context.Context, recordID, templateID, technicianID string) (*checklists.Tracker, error) {
	if recordID == "" {
		return nil, errors.New("checklists: empty record id")
	}
	template, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, checklists.ErrTemplateNotFound
	}
	existing, err := s.trackers.FindByRecordAndTemplate(ctx, recordID, templateID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, checklists.ErrDuplicateTracker
	}

	now := s.clock.Now()
	tracker, err := checklists.NewTracker(
		"ctrk-"+buildShortID(recordID+templateID+now.Format(time.RFC3339Nano)),
		recordID, template, technicianID, now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.trackers.Save(ctx, tracker); err != nil {
		return nil, err
	}
	return tracker.Clone(), nil
}

// Get loads a tracker by id.
func (s *TrackerService) Get(ctx context.Context, trackerID string) (*checklists.Tracker, error) {
	tracker, err := s.trackers.Get(ctx, trackerID)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		return nil, checklists.ErrTrackerNotFound
	}
	return tracker, nil
}

// ListByRecord returns every tracker linked to a record.
func (s *TrackerService) ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error) {
	return s.trackers.ListByRecord(ctx, recordID)
}

// UpdateItem merges one evidence submission into a tracker item and
// recomputes completion. Re-submitting identical evidence is idempotent.
func (s *TrackerService) UpdateItem(ctx context.Context, trackerID, itemID string, update checklists.EvidenceUpdate) (*checklists.Tracker, error) {
	tracker, err := s.trackers.Get(ctx, trackerID)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		return nil, checklists.ErrTrackerNotFound
	}

	if update.SubmittedAt.IsZero() {
		update.SubmittedAt = s.clock.Now()
	}
	wasCompleted := tracker.IsFullyCompleted() && tracker.Status == checklists.TrackerStatusCompleted
	if err := tracker.ApplyEvidence(itemID, update); err != nil {
		return nil, err
	}
	if err := s.trackers.Save(ctx, tracker); err != nil {
		return nil, err
	}
	metrics.IncTrackerItemUpdate(update.Completed)

	if s.publisher != nil {
		now := update.SubmittedAt
		_ = s.publisher.Publish(ctx, checklistevents.TrackerItemUpdated{
			EventID:    eventing.NewEventID(),
			TrackerID:  tracker.ID,
			RecordID:   tracker.RecordID,
			ItemID:     itemID,
			Completed:  update.Completed,
			Percentage: tracker.Percentage,
			OccurredAt: now,
		})
		if !wasCompleted && tracker.Status == checklists.TrackerStatusCompleted {
			_ = s.publisher.Publish(ctx, checklistevents.TrackerCompleted{
				EventID:      eventing.NewEventID(),
				TrackerID:    tracker.ID,
				RecordID:     tracker.RecordID,
				TemplateName: tracker.TemplateName,
				OccurredAt:   now,
			})
		}
	}
	return tracker.Clone(), nil
}
