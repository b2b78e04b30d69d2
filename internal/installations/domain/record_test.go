package installations

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition_Lifecycle(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCommissioned, true},
		{StatusPending, StatusActive, false},
		{StatusInProgress, StatusCommissioned, true},
		{StatusInProgress, StatusActive, true},
		{StatusInProgress, StatusPending, false},
		{StatusCommissioned, StatusActive, true},
		{StatusCommissioned, StatusPending, false},
		{StatusCommissioned, StatusInProgress, false},
		{StatusActive, StatusCommissioned, false},
		{StatusDecommissioned, StatusPending, false},
		{StatusDecommissioned, StatusActive, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCanTransition_DecommissionedReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []string{StatusPending, StatusInProgress, StatusCommissioned, StatusActive} {
		if !CanTransition(from, StatusDecommissioned) {
			t.Errorf("decommissioned not reachable from %s", from)
		}
	}
}

func TestTransitionTo_SameStateIsNoOp(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusPending}
	before := record.UpdatedAt
	if err := record.TransitionTo(StatusPending, time.Now().UTC()); err != nil {
		t.Fatalf("same-state transition should succeed, got %v", err)
	}
	if !record.UpdatedAt.Equal(before) {
		t.Fatalf("same-state transition mutated the record")
	}
}

func TestTransitionTo_Illegal(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusActive}
	err := record.TransitionTo(StatusCommissioned, time.Now().UTC())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if record.Status != StatusActive {
		t.Fatalf("failed transition mutated status to %s", record.Status)
	}
}

func TestTransitionTo_UnknownStatus(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusPending}
	if err := record.TransitionTo("installed", time.Now().UTC()); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestTransitionTo_SetsCommissioningDateOnce(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusPending}
	first := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := record.TransitionTo(StatusCommissioned, first); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if record.CommissioningDate == nil || !record.CommissioningDate.Equal(first) {
		t.Fatalf("commissioning date not stamped")
	}

	// Round trip through decommission on a fresh record with a preset date:
	// an explicit date survives the transition.
	preset := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	record2 := &InstallationRecord{ID: "inst-2", Status: StatusPending, CommissioningDate: &preset}
	if err := record2.TransitionTo(StatusCommissioned, first); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !record2.CommissioningDate.Equal(preset) {
		t.Fatalf("preset commissioning date was overwritten")
	}
}

func TestBuildShortCode(t *testing.T) {
	cases := []struct {
		kind string
		id   string
		want string
	}{
		{KindSolar, "inst-a1b2c3d4", "SOL-a1b2c3d4"},
		{KindInternetLink, "inst-deadbeef", "LNK-deadbeef"},
		{KindCustomFixture, "inst-cafe0123", "FIX-cafe0123"},
		{KindHybrid, "inst-00ff00ff", "HYB-00ff00ff"},
		{"greenhouse", "inst-12345678", "INS-12345678"},
		{KindSolar, "short", "SOL-short"},
	}
	for _, tc := range cases {
		if got := BuildShortCode(tc.kind, tc.id); got != tc.want {
			t.Errorf("BuildShortCode(%s, %s) = %s, want %s", tc.kind, tc.id, got, tc.want)
		}
	}
}

func TestAssignTechnician_Dedupes(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusPending}
	if !record.AssignTechnician("tech-1") {
		t.Fatalf("first assignment rejected")
	}
	if record.AssignTechnician("tech-1") {
		t.Fatalf("duplicate assignment accepted")
	}
	if len(record.Technicians) != 1 {
		t.Fatalf("expected 1 technician, got %d", len(record.Technicians))
	}
}

func TestAttachComponent_Dedupes(t *testing.T) {
	record := &InstallationRecord{ID: "inst-1", Status: StatusPending}
	if !record.AttachComponent("inv-9") {
		t.Fatalf("first attach rejected")
	}
	if record.AttachComponent("inv-9") {
		t.Fatalf("duplicate attach accepted")
	}
}

func TestCommissioningBlockedError_Message(t *testing.T) {
	err := &CommissioningBlockedError{
		RecordID: "inst-1",
		Target:   StatusCommissioned,
		Blocking: []BlockingTracker{{TemplateName: "Solar Pre-Install", Percentage: 66}},
	}
	want := "installations: commissioning blocked for record inst-1 -> commissioned: Solar Pre-Install at 66%"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
