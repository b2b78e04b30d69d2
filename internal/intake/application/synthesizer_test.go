package application

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	checklistapp "solarops-cloud/internal/checklists/application"
	checklists "solarops-cloud/internal/checklists/domain"
	checklistmemory "solarops-cloud/internal/checklists/infrastructure/memory"
	installapp "solarops-cloud/internal/installations/application"
	installations "solarops-cloud/internal/installations/domain"
	installmemory "solarops-cloud/internal/installations/infrastructure/memory"
	intakeevents "solarops-cloud/internal/intake/application/events"
)

type testClock struct{ now time.Time }

func (c testClock) Now() time.Time { return c.now }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, any) error { return nil }

type syntheStack struct {
	synthesizer *Synthesizer
	records     *installmemory.RecordRepository
	trackers    *checklistapp.TrackerService
	templates   *checklistapp.TemplateService
}

func newSyntheStack(t *testing.T) *syntheStack {
	t.Helper()
	clock := testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	templateRepo := checklistmemory.NewTemplateRepository()
	trackerRepo := checklistmemory.NewTrackerRepository()
	templateService, err := checklistapp.NewTemplateService(templateRepo, clock)
	if err != nil {
		t.Fatalf("template service: %v", err)
	}
	trackerService, err := checklistapp.NewTrackerService(trackerRepo, templateRepo, noopPublisher{}, clock)
	if err != nil {
		t.Fatalf("tracker service: %v", err)
	}

	recordRepo := installmemory.NewRecordRepository()
	gate, err := installapp.NewCommissioningGate(trackerRepo)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	recordService, err := installapp.NewService(recordRepo, gate, noopPublisher{}, clock)
	if err != nil {
		t.Fatalf("record service: %v", err)
	}

	synthesizer, err := NewSynthesizer(recordService, templateService, trackerService, DefaultMapping(), log.New(os.Stdout, "", 0))
	if err != nil {
		t.Fatalf("synthesizer: %v", err)
	}
	return &syntheStack{
		synthesizer: synthesizer,
		records:     recordRepo,
		trackers:    trackerService,
		templates:   templateService,
	}
}

func (s *syntheStack) seedSolarTemplate(t *testing.T) *checklists.Template {
	t.Helper()
	template, err := s.templates.Create(context.Background(), checklistapp.TemplateDefinition{
		TenantID: "tenant-a",
		Name:     "Solar Pre-Install",
		Phase:    checklists.PhasePreInstall,
		Kind:     "solar",
		Items: []checklists.ChecklistItem{
			{ItemID: "roof-check", Title: "Roof load check", Required: true},
			{ItemID: "wiring", Title: "DC wiring", Required: true},
			{ItemID: "earthing", Title: "Earthing", Required: true},
		},
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template
}

func solarRequest(status string) intakeevents.RequestReceived {
	return intakeevents.RequestReceived{
		EventID:       "evt-1",
		RequestID:     "req-100",
		TenantID:      "tenant-a",
		Status:        status,
		Kind:          "solar",
		SizeMagnitude: 5,
		SizeUnit:      "kw",
		CustomerID:    "cust-1",
		OrderID:       "ord-1",
		Address:       "12 Main Rd",
		Technicians:   []string{"tech-1", "tech-2"},
		OccurredAt:    time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestSynthesize_CreatesRecordAndProvisionsTrackers(t *testing.T) {
	stack := newSyntheStack(t)
	stack.seedSolarTemplate(t)

	result, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("scheduled"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !result.Created {
		t.Fatalf("expected created record")
	}
	if result.Provisioned != 1 {
		t.Fatalf("expected 1 provisioned tracker, got %d", result.Provisioned)
	}
	if result.AppliedStatus != installations.StatusPending {
		t.Fatalf("expected pending, got %s", result.AppliedStatus)
	}

	record, err := stack.records.FindByRequestID(context.Background(), "req-100")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record == nil {
		t.Fatalf("record not stored")
	}
	if record.Kind != installations.KindSolar || record.SizeUnit != installations.UnitKW {
		t.Fatalf("normalization failed: %s %s", record.Kind, record.SizeUnit)
	}
	if len(record.Technicians) != 2 {
		t.Fatalf("technicians not assigned: %v", record.Technicians)
	}

	trackers, err := stack.trackers.ListByRecord(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("list trackers: %v", err)
	}
	if len(trackers) != 1 || trackers[0].TechnicianID != "tech-1" {
		t.Fatalf("unexpected trackers %+v", trackers)
	}
}

func TestSynthesize_RedeliveryIsIdempotent(t *testing.T) {
	stack := newSyntheStack(t)
	stack.seedSolarTemplate(t)
	evt := solarRequest("scheduled")

	if _, err := stack.synthesizer.Synthesize(context.Background(), evt); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := stack.synthesizer.Synthesize(context.Background(), evt)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Created {
		t.Fatalf("redelivery created a second record")
	}

	records, err := stack.records.List(context.Background(), "tenant-a", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	trackers, err := stack.trackers.ListByRecord(context.Background(), result.RecordID)
	if err != nil {
		t.Fatalf("list trackers: %v", err)
	}
	if len(trackers) != 1 {
		t.Fatalf("redelivery duplicated trackers: %d", len(trackers))
	}
}

func TestSynthesize_GateHoldsBackCompletion(t *testing.T) {
	stack := newSyntheStack(t)
	stack.seedSolarTemplate(t)

	if _, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("installing")); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	// Upstream marks the request completed while the checklist is untouched.
	result, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("completed"))
	if err != nil {
		t.Fatalf("blocked sync should not error: %v", err)
	}
	if len(result.Blocking) != 1 {
		t.Fatalf("expected 1 blocking tracker, got %+v", result.Blocking)
	}
	if result.Blocking[0].TemplateName != "Solar Pre-Install" || result.Blocking[0].Percentage != 0 {
		t.Fatalf("unexpected blocking detail %+v", result.Blocking[0])
	}
	if result.AppliedStatus != installations.StatusInProgress {
		t.Fatalf("blocked sync moved record to %s", result.AppliedStatus)
	}

	// Complete the checklist; the next delivery commissions the record.
	trackers, err := stack.trackers.ListByRecord(context.Background(), result.RecordID)
	if err != nil {
		t.Fatalf("list trackers: %v", err)
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for _, itemID := range []string{"roof-check", "wiring", "earthing"} {
		if _, err := stack.trackers.UpdateItem(context.Background(), trackers[0].ID, itemID, checklists.EvidenceUpdate{Completed: true, SubmittedAt: now}); err != nil {
			t.Fatalf("complete %s: %v", itemID, err)
		}
	}
	result, err = stack.synthesizer.Synthesize(context.Background(), solarRequest("completed"))
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if result.AppliedStatus != installations.StatusCommissioned {
		t.Fatalf("expected commissioned, got %s", result.AppliedStatus)
	}
	if len(result.Blocking) != 0 {
		t.Fatalf("unexpected blocking %+v", result.Blocking)
	}
}

func TestSynthesize_RedeliveryProvisionsMissedTrackers(t *testing.T) {
	stack := newSyntheStack(t)

	// First delivery lands before any matching template exists; the record
	// sits trackerless, the same state a crash between record create and
	// tracker provisioning leaves behind.
	if _, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("installing")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	stack.seedSolarTemplate(t)

	result, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("completed"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Provisioned != 1 {
		t.Fatalf("redelivery provisioned %d trackers, want 1", result.Provisioned)
	}
	if len(result.Blocking) != 1 {
		t.Fatalf("gate decided on an empty tracker set: %+v", result)
	}
	if result.AppliedStatus != installations.StatusInProgress {
		t.Fatalf("trackerless record moved to %s", result.AppliedStatus)
	}

	trackers, err := stack.trackers.ListByRecord(context.Background(), result.RecordID)
	if err != nil {
		t.Fatalf("list trackers: %v", err)
	}
	if len(trackers) != 1 {
		t.Fatalf("expected 1 tracker, got %d", len(trackers))
	}
}

func TestSynthesize_IllegalUpstreamStatusIsIgnored(t *testing.T) {
	stack := newSyntheStack(t)

	if _, err := stack.synthesizer.Synthesize(context.Background(), solarRequest("activated")); err != nil {
		t.Fatalf("activate sync: %v", err)
	}
	// pending -> active is not a legal edge; the record holds and no error surfaces.
	record, err := stack.records.FindByRequestID(context.Background(), "req-100")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != installations.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
}

func TestSynthesize_LegacyKindLandsInClassification(t *testing.T) {
	stack := newSyntheStack(t)
	evt := solarRequest("scheduled")
	evt.Kind = ""
	evt.LegacyKind = "Greenhouse Fan"
	evt.SizeMagnitude = 0
	evt.SizeUnit = ""
	evt.LegacySize = "3 units"

	result, err := stack.synthesizer.Synthesize(context.Background(), evt)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	record, err := stack.records.Get(context.Background(), result.RecordID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Kind != installations.KindSolar {
		t.Fatalf("legacy kind not defaulted, got %s", record.Kind)
	}
	if record.Classification != "Greenhouse Fan" {
		t.Fatalf("original kind lost, classification=%q", record.Classification)
	}
	if record.SizeMagnitude != 3 || record.SizeUnit != installations.UnitCount {
		t.Fatalf("legacy size not parsed: %v %s", record.SizeMagnitude, record.SizeUnit)
	}
}

func TestSynthesize_EmptyRequestID(t *testing.T) {
	stack := newSyntheStack(t)
	if _, err := stack.synthesizer.Synthesize(context.Background(), intakeevents.RequestReceived{}); err == nil {
		t.Fatalf("expected error for empty request id")
	}
}
