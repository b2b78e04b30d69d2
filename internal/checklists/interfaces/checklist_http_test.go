package interfaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solarops-cloud/internal/auth"
	checklistapp "solarops-cloud/internal/checklists/application"
	checklists "solarops-cloud/internal/checklists/domain"
	checklistmemory "solarops-cloud/internal/checklists/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, any) error { return nil }

type stubTenantChecker struct{ tenant string }

func (c stubTenantChecker) EnsureRecordTenant(_ context.Context, tenantID, _ string) error {
	if tenantID != c.tenant {
		return auth.ErrTenantMismatch
	}
	return nil
}

type checklistFixture struct {
	handler  *ChecklistHandler
	trackers *checklistapp.TrackerService
}

func newChecklistFixture(t *testing.T) (*checklistFixture, *checklists.Tracker) {
	t.Helper()
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

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

	template, err := templateService.Create(context.Background(), checklistapp.TemplateDefinition{
		TenantID: "tenant-a",
		Name:     "Solar Pre-Install",
		Phase:    checklists.PhasePreInstall,
		Kind:     "solar",
		Items:    []checklists.ChecklistItem{{ItemID: "roof-check", Title: "Roof load check", Required: true}},
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	tracker, err := trackerService.Provision(context.Background(), "inst-1", template.ID, "tech-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	handler, err := NewChecklistHandler(templateService, trackerService, stubTenantChecker{tenant: "tenant-a"}, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &checklistFixture{handler: handler, trackers: trackerService}, tracker
}

func postEvidence(fixture *checklistFixture, trackerID, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/checklists/trackers/"+trackerID+"/items/roof-check",
		strings.NewReader(`{"completed":true}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), tenantID, auth.RoleTechnician, "tech-1"))
	resp := httptest.NewRecorder()
	fixture.handler.ServeHTTP(resp, req)
	return resp
}

func TestChecklistHandler_EvidenceCrossTenantLeavesTrackerUntouched(t *testing.T) {
	fixture, tracker := newChecklistFixture(t)

	resp := postEvidence(fixture, tracker.ID, "tenant-b")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", resp.Code, resp.Body.String())
	}

	stored, err := fixture.trackers.Get(context.Background(), tracker.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Percentage != 0 || len(stored.Evidence) != 0 {
		t.Fatalf("cross-tenant write persisted: %d%% %+v", stored.Percentage, stored.Evidence)
	}
}

func TestChecklistHandler_EvidenceSameTenantUpdatesItem(t *testing.T) {
	fixture, tracker := newChecklistFixture(t)

	resp := postEvidence(fixture, tracker.ID, "tenant-a")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	stored, err := fixture.trackers.Get(context.Background(), tracker.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Percentage != 100 || !stored.Evidence["roof-check"].Completed {
		t.Fatalf("evidence not applied: %d%% %+v", stored.Percentage, stored.Evidence)
	}
}

func TestChecklistHandler_EvidenceUnknownTracker(t *testing.T) {
	fixture, _ := newChecklistFixture(t)

	resp := postEvidence(fixture, "tracker-missing", "tenant-a")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
