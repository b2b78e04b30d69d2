package application

import (
	"context"
	"errors"
	"testing"
	"time"

	checklistevents "solarops-cloud/internal/checklists/application/events"
	checklists "solarops-cloud/internal/checklists/domain"
	"solarops-cloud/internal/checklists/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type capturePublisher struct {
	events []any
}

func (p *capturePublisher) Publish(_ context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

func seedTemplate(t *testing.T, repo *memory.TemplateRepository) *checklists.Template {
	t.Helper()
	template := &checklists.Template{
		ID:       "ctpl-1",
		TenantID: "tenant-a",
		Name:     "Solar Pre-Install",
		Phase:    checklists.PhasePreInstall,
		Kind:     "solar",
		Items: []checklists.ChecklistItem{
			{ItemID: "roof-check", Title: "Roof load check", Required: true},
			{ItemID: "panel-mount", Title: "Panel mounts", Required: true, RequiresPhoto: true, PhotoCount: 1},
		},
		Active: true,
	}
	if err := repo.Save(context.Background(), template); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template
}

func newTrackerService(t *testing.T) (*TrackerService, *memory.TemplateRepository, *capturePublisher) {
	t.Helper()
	templates := memory.NewTemplateRepository()
	trackers := memory.NewTrackerRepository()
	publisher := &capturePublisher{}
	service, err := NewTrackerService(trackers, templates, publisher, fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("new tracker service: %v", err)
	}
	return service, templates, publisher
}

func TestTrackerService_Provision(t *testing.T) {
	service, templates, _ := newTrackerService(t)
	template := seedTemplate(t, templates)

	tracker, err := service.Provision(context.Background(), "inst-1", template.ID, "tech-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if tracker.RecordID != "inst-1" || tracker.TemplateID != template.ID {
		t.Fatalf("unexpected tracker linkage %+v", tracker)
	}
	if tracker.Status != checklists.TrackerStatusNotStarted {
		t.Fatalf("expected not_started, got %s", tracker.Status)
	}
	if len(tracker.TemplateItems) != 2 {
		t.Fatalf("items not snapshotted")
	}
}

func TestTrackerService_ProvisionDuplicatePair(t *testing.T) {
	service, templates, _ := newTrackerService(t)
	template := seedTemplate(t, templates)

	if _, err := service.Provision(context.Background(), "inst-1", template.ID, "tech-1"); err != nil {
		t.Fatalf("provision: %v", err)
	}
	_, err := service.Provision(context.Background(), "inst-1", template.ID, "tech-2")
	if !errors.Is(err, checklists.ErrDuplicateTracker) {
		t.Fatalf("expected ErrDuplicateTracker, got %v", err)
	}

	// Another record may use the same template.
	if _, err := service.Provision(context.Background(), "inst-2", template.ID, "tech-1"); err != nil {
		t.Fatalf("provision for second record: %v", err)
	}
}

func TestTrackerService_ProvisionUnknownTemplate(t *testing.T) {
	service, _, _ := newTrackerService(t)
	_, err := service.Provision(context.Background(), "inst-1", "ctpl-missing", "")
	if !errors.Is(err, checklists.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTrackerService_UpdateItemPublishesCompletionOnce(t *testing.T) {
	service, templates, publisher := newTrackerService(t)
	template := seedTemplate(t, templates)
	tracker, err := service.Provision(context.Background(), "inst-1", template.ID, "tech-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	publisher.events = nil
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	if _, err := service.UpdateItem(context.Background(), tracker.ID, "roof-check", checklists.EvidenceUpdate{Completed: true, SubmittedBy: "tech-1", SubmittedAt: now}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	updated, err := service.UpdateItem(context.Background(), tracker.ID, "panel-mount", checklists.EvidenceUpdate{
		Completed:   true,
		SubmittedBy: "tech-1",
		SubmittedAt: now.Add(time.Minute),
		PhotoRefs:   []checklists.PhotoRef{{EvidenceID: "ph-1", URL: "s3://a", UploadedAt: now}},
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Status != checklists.TrackerStatusCompleted || updated.Percentage != 100 {
		t.Fatalf("tracker not completed: %s %d%%", updated.Status, updated.Percentage)
	}

	var itemEvents, completedEvents int
	for _, event := range publisher.events {
		switch event.(type) {
		case checklistevents.TrackerItemUpdated:
			itemEvents++
		case checklistevents.TrackerCompleted:
			completedEvents++
		}
	}
	if itemEvents != 2 {
		t.Fatalf("expected 2 item events, got %d", itemEvents)
	}
	if completedEvents != 1 {
		t.Fatalf("expected 1 completion event, got %d", completedEvents)
	}

	// A redelivered final submission must not re-announce completion.
	publisher.events = nil
	if _, err := service.UpdateItem(context.Background(), tracker.ID, "panel-mount", checklists.EvidenceUpdate{
		Completed:   true,
		SubmittedBy: "tech-1",
		SubmittedAt: now.Add(time.Minute),
		PhotoRefs:   []checklists.PhotoRef{{EvidenceID: "ph-1", URL: "s3://a", UploadedAt: now}},
	}); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	for _, event := range publisher.events {
		if _, ok := event.(checklistevents.TrackerCompleted); ok {
			t.Fatalf("completion re-announced on redelivery")
		}
	}
}

func TestTrackerService_UpdateItemErrors(t *testing.T) {
	service, templates, _ := newTrackerService(t)
	template := seedTemplate(t, templates)
	tracker, err := service.Provision(context.Background(), "inst-1", template.ID, "")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if _, err := service.UpdateItem(context.Background(), "ctrk-missing", "roof-check", checklists.EvidenceUpdate{}); !errors.Is(err, checklists.ErrTrackerNotFound) {
		t.Fatalf("expected ErrTrackerNotFound, got %v", err)
	}
	if _, err := service.UpdateItem(context.Background(), tracker.ID, "no-such-item", checklists.EvidenceUpdate{}); !errors.Is(err, checklists.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}
