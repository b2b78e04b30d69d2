package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	checklists "solarops-cloud/internal/checklists/domain"
	installevents "solarops-cloud/internal/installations/application/events"
	installations "solarops-cloud/internal/installations/domain"
	"solarops-cloud/internal/installations/infrastructure/memory"
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

func newTestService(t *testing.T, trackers TrackerSource) (*Service, *memory.RecordRepository, *capturePublisher) {
	t.Helper()
	if trackers == nil {
		trackers = &stubTrackerSource{}
	}
	repo := memory.NewRecordRepository()
	gate, err := NewCommissioningGate(trackers)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	publisher := &capturePublisher{}
	service, err := NewService(repo, gate, publisher, fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo, publisher
}

func seedRecord(t *testing.T, service *Service, status string) *installations.InstallationRecord {
	t.Helper()
	record, err := service.Create(context.Background(), &installations.InstallationRecord{
		TenantID:  "tenant-a",
		RequestID: "req-1",
		Kind:      installations.KindSolar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, step := range statusPath(status) {
		if record, err = service.UpdateStatus(context.Background(), record.ID, step); err != nil {
			t.Fatalf("seed transition to %s: %v", step, err)
		}
	}
	return record
}

func statusPath(target string) []string {
	switch target {
	case installations.StatusPending:
		return nil
	case installations.StatusInProgress:
		return []string{installations.StatusInProgress}
	default:
		return []string{installations.StatusInProgress, target}
	}
}

func TestService_CreateAssignsIdentity(t *testing.T) {
	service, _, publisher := newTestService(t, nil)
	record, err := service.Create(context.Background(), &installations.InstallationRecord{
		TenantID:  "tenant-a",
		RequestID: "req-1",
		Kind:      installations.KindSolar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == "" || !strings.HasPrefix(record.ID, "inst-") {
		t.Fatalf("unexpected id %q", record.ID)
	}
	if !strings.HasPrefix(record.ShortCode, "SOL-") {
		t.Fatalf("unexpected short code %q", record.ShortCode)
	}
	if record.Status != installations.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	created, ok := publisher.events[0].(installevents.RecordCreated)
	if !ok {
		t.Fatalf("unexpected event type %T", publisher.events[0])
	}
	if created.RecordID != record.ID || created.RequestID != "req-1" {
		t.Fatalf("unexpected event payload %+v", created)
	}
}

func TestService_CreateRejectsDuplicateRequest(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	if _, err := service.Create(context.Background(), &installations.InstallationRecord{TenantID: "tenant-a", RequestID: "req-1", Kind: installations.KindSolar}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := service.Create(context.Background(), &installations.InstallationRecord{TenantID: "tenant-a", RequestID: "req-1", Kind: installations.KindSolar})
	if !errors.Is(err, installations.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestService_UpdateStatusBlockedByGate(t *testing.T) {
	incomplete := gateTracker(t, "Solar Pre-Install", false)
	service, repo, _ := newTestService(t, &stubTrackerSource{trackers: []*checklists.Tracker{incomplete}})
	record := seedRecord(t, service, installations.StatusInProgress)

	_, err := service.UpdateStatus(context.Background(), record.ID, installations.StatusCommissioned)
	var blocked *installations.CommissioningBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected CommissioningBlockedError, got %v", err)
	}
	if len(blocked.Blocking) != 1 || blocked.Blocking[0].TemplateName != "Solar Pre-Install" || blocked.Blocking[0].Percentage != 66 {
		t.Fatalf("unexpected blocking detail %+v", blocked.Blocking)
	}

	stored, err := repo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != installations.StatusInProgress {
		t.Fatalf("blocked transition mutated record to %s", stored.Status)
	}
}

func TestService_UpdateStatusCommissionsWhenComplete(t *testing.T) {
	done := gateTracker(t, "Solar Pre-Install", true)
	service, _, publisher := newTestService(t, &stubTrackerSource{trackers: []*checklists.Tracker{done}})
	record := seedRecord(t, service, installations.StatusInProgress)
	publisher.events = nil

	updated, err := service.UpdateStatus(context.Background(), record.ID, installations.StatusCommissioned)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != installations.StatusCommissioned {
		t.Fatalf("expected commissioned, got %s", updated.Status)
	}
	if updated.CommissioningDate == nil {
		t.Fatalf("commissioning date not stamped")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	changed, ok := publisher.events[0].(installevents.RecordStatusChanged)
	if !ok {
		t.Fatalf("unexpected event type %T", publisher.events[0])
	}
	if changed.FromStatus != installations.StatusInProgress || changed.ToStatus != installations.StatusCommissioned {
		t.Fatalf("unexpected event payload %+v", changed)
	}
}

func TestService_UpdateStatusSameStateIsNoOp(t *testing.T) {
	service, _, publisher := newTestService(t, nil)
	record := seedRecord(t, service, installations.StatusInProgress)
	publisher.events = nil

	updated, err := service.UpdateStatus(context.Background(), record.ID, installations.StatusInProgress)
	if err != nil {
		t.Fatalf("same-state update: %v", err)
	}
	if updated.Status != installations.StatusInProgress {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("same-state update published %d events", len(publisher.events))
	}
}

func TestService_DecommissionIgnoresGate(t *testing.T) {
	incomplete := gateTracker(t, "Solar Pre-Install", false)
	service, _, _ := newTestService(t, &stubTrackerSource{trackers: []*checklists.Tracker{incomplete}})
	record := seedRecord(t, service, installations.StatusInProgress)

	updated, err := service.UpdateStatus(context.Background(), record.ID, installations.StatusDecommissioned)
	if err != nil {
		t.Fatalf("decommission: %v", err)
	}
	if updated.Status != installations.StatusDecommissioned {
		t.Fatalf("expected decommissioned, got %s", updated.Status)
	}
}

func TestService_UpdateStatusIllegal(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	record := seedRecord(t, service, installations.StatusPending)

	if _, err := service.UpdateStatus(context.Background(), record.ID, installations.StatusActive); !errors.Is(err, installations.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestService_UpdateStatusUnknownTargets(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	if _, err := service.UpdateStatus(context.Background(), "inst-x", "installed"); !errors.Is(err, installations.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := service.UpdateStatus(context.Background(), "inst-missing", installations.StatusInProgress); !errors.Is(err, installations.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestService_AssignTechnicianPersists(t *testing.T) {
	service, repo, _ := newTestService(t, nil)
	record := seedRecord(t, service, installations.StatusPending)

	if _, err := service.AssignTechnician(context.Background(), record.ID, "tech-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := service.AssignTechnician(context.Background(), record.ID, "tech-1"); err != nil {
		t.Fatalf("repeat assign: %v", err)
	}
	stored, err := repo.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Technicians) != 1 || stored.Technicians[0] != "tech-1" {
		t.Fatalf("unexpected technicians %v", stored.Technicians)
	}
}
