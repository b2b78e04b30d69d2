package application

import (
	"context"
	"errors"

	checklists "solarops-cloud/internal/checklists/domain"
	installations "solarops-cloud/internal/installations/domain"
)

// TrackerSource lists the completion trackers linked to a record. The
// returned trackers are detached snapshots; one gate evaluation reads them
// once and decides, so a concurrent tracker update cannot flip an outcome
// mid-evaluation.
type TrackerSource interface {
	ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error)
}

// GateDecision is the outcome of one gate evaluation.
type GateDecision struct {
	Allowed  bool
	Blocking []installations.BlockingTracker
}

// CommissioningGate validates lifecycle transitions against checklist
// completion. It guards only the successful-completion states; every other
// transition passes unconditionally.
type CommissioningGate struct {
	trackers TrackerSource
}

// NewCommissioningGate constructs a gate.
func NewCommissioningGate(trackers TrackerSource) (*CommissioningGate, error) {
	if trackers == nil {
		return nil, errors.New("gate: nil tracker source")
	}
	return &CommissioningGate{trackers: trackers}, nil
}

// CanTransition evaluates a proposed transition. A record with no linked
// trackers passes: nothing to verify. The permissiveness for ungoverned
// installation kinds is deliberate; see DESIGN.md.
func (g *CommissioningGate) CanTransition(ctx context.Context, record *installations.InstallationRecord, target string) (GateDecision, error) {
	if record == nil {
		return GateDecision{}, installations.ErrNilRecord
	}
	if target != installations.StatusCommissioned && target != installations.StatusActive {
		return GateDecision{Allowed: true}, nil
	}

	trackers, err := g.trackers.ListByRecord(ctx, record.ID)
	if err != nil {
		return GateDecision{}, err
	}

	var blocking []installations.BlockingTracker
	for _, tracker := range trackers {
		if tracker.IsFullyCompleted() {
			continue
		}
		blocking = append(blocking, installations.BlockingTracker{
			TemplateName: tracker.TemplateName,
			Percentage:   tracker.Percentage,
		})
	}
	if len(blocking) > 0 {
		return GateDecision{Allowed: false, Blocking: blocking}, nil
	}
	return GateDecision{Allowed: true}, nil
}
