package application

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	checklists "solarops-cloud/internal/checklists/domain"
	installations "solarops-cloud/internal/installations/domain"
	intakeevents "solarops-cloud/internal/intake/application/events"
	"solarops-cloud/internal/observability/metrics"
)

// RecordStore is the installation record API the synthesizer drives. Status
// sync goes through UpdateStatus like every other caller, so upstream
// activity can never bypass the commissioning gate.
type RecordStore interface {
	FindByRequestID(ctx context.Context, requestID string) (*installations.InstallationRecord, error)
	Create(ctx context.Context, record *installations.InstallationRecord) (*installations.InstallationRecord, error)
	UpdateStatus(ctx context.Context, recordID, target string) (*installations.InstallationRecord, error)
	AssignTechnician(ctx context.Context, recordID, technicianID string) (*installations.InstallationRecord, error)
}

// TemplateLister lists active templates for an installation kind.
type TemplateLister interface {
	ListActive(ctx context.Context, tenantID, kind string) ([]*checklists.Template, error)
}

// TrackerProvisioner provisions completion trackers.
type TrackerProvisioner interface {
	Provision(ctx context.Context, recordID, templateID, technicianID string) (*checklists.Tracker, error)
}

// SyncResult reports what one synthesize call did. Gate rejections land in
// Blocking instead of an error: from the upstream system's point of view a
// held-back status sync is routine, not a failure.
type SyncResult struct {
	RecordID      string                          `json:"record_id"`
	Created       bool                            `json:"created"`
	TargetStatus  string                          `json:"target_status"`
	AppliedStatus string                          `json:"applied_status"`
	Blocking      []installations.BlockingTracker `json:"blocking,omitempty"`
	Provisioned   int                             `json:"provisioned"`
}

// Synthesizer keeps exactly one installation record per upstream intake
// request and its coarse status in sync with the request's own status.
type Synthesizer struct {
	records   RecordStore
	templates TemplateLister
	trackers  TrackerProvisioner
	mapping   Mapping
	logger    *log.Logger
}

// NewSynthesizer constructs a synthesizer.
func NewSynthesizer(records RecordStore, templates TemplateLister, trackers TrackerProvisioner, mapping Mapping, logger *log.Logger) (*Synthesizer, error) {
	if records == nil {
		return nil, errors.New("intake: nil record store")
	}
	if templates == nil {
		return nil, errors.New("intake: nil template lister")
	}
	if trackers == nil {
		return nil, errors.New("intake: nil tracker provisioner")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Synthesizer{records: records, templates: templates, trackers: trackers, mapping: mapping, logger: logger}, nil
}

// Synthesize projects one intake request event onto the record store.
// It is idempotent on the request id: a redelivered or repeated event finds
// the existing record and converges to the same state.
func (s *Synthesizer) Synthesize(ctx context.Context, evt intakeevents.RequestReceived) (*SyncResult, error) {
	if evt.RequestID == "" {
		return nil, errors.New("intake: empty request id")
	}

	record, err := s.records.FindByRequestID(ctx, evt.RequestID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	if record == nil {
		record, err = s.createRecord(ctx, evt)
		if err != nil {
			// A concurrent delivery can win the create race; converge on its record.
			if errors.Is(err, installations.ErrDuplicateRequest) {
				record, err = s.records.FindByRequestID(ctx, evt.RequestID)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		} else {
			result.Created = true
		}
		if record == nil {
			return nil, installations.ErrRecordNotFound
		}
		for _, technicianID := range evt.Technicians {
			if _, err := s.records.AssignTechnician(ctx, record.ID, technicianID); err != nil {
				return nil, err
			}
		}
	}
	result.RecordID = record.ID

	// Provisioning runs on every delivery, not just the creating one: a crash
	// between Create and Provision leaves an existing record with no trackers,
	// and a trackerless record passes the gate vacuously. Duplicate pairs are
	// skipped inside provisionTrackers, so repeating is safe.
	provisioned, err := s.provisionTrackers(ctx, record, evt)
	if err != nil {
		return nil, err
	}
	result.Provisioned = provisioned

	target := s.mapping.TargetStatus(evt.Status)
	result.TargetStatus = target
	result.AppliedStatus = record.Status
	if record.Status == target {
		metrics.IncSynthesize("noop")
		return result, nil
	}

	updated, err := s.records.UpdateStatus(ctx, record.ID, target)
	if err != nil {
		var blocked *installations.CommissioningBlockedError
		if errors.As(err, &blocked) {
			s.logger.Printf("intake sync: record %s held at %s, %s blocked by incomplete checklists", record.ID, record.Status, target)
			result.Blocking = blocked.Blocking
			metrics.IncSynthesize("blocked")
			return result, nil
		}
		if errors.Is(err, installations.ErrIllegalTransition) {
			s.logger.Printf("intake sync: record %s at %s ignores upstream status %q (%s not reachable)", record.ID, record.Status, evt.Status, target)
			metrics.IncSynthesize("illegal")
			return result, nil
		}
		return nil, err
	}
	result.AppliedStatus = updated.Status
	metrics.IncSynthesize("applied")
	return result, nil
}

func (s *Synthesizer) createRecord(ctx context.Context, evt intakeevents.RequestReceived) (*installations.InstallationRecord, error) {
	kindInput := evt.Kind
	if kindInput == "" {
		kindInput = evt.LegacyKind
	}
	kind, mapped := s.mapping.NormalizeKind(kindInput)

	// Legacy/ambiguous kinds collapse to the default kind; the original
	// value survives in the classification attribute instead of being dropped.
	classification := ""
	if !mapped && strings.TrimSpace(kindInput) != "" {
		classification = strings.TrimSpace(kindInput)
	}

	magnitude := evt.SizeMagnitude
	unit := s.mapping.NormalizeSizeUnit(evt.SizeUnit)
	if magnitude == 0 && evt.LegacySize != "" {
		magnitude, unit = parseLegacySize(evt.LegacySize, s.mapping)
	}

	record := &installations.InstallationRecord{
		TenantID:       evt.TenantID,
		RequestID:      evt.RequestID,
		CustomerID:     evt.CustomerID,
		OrderID:        evt.OrderID,
		Kind:           kind,
		SizeMagnitude:  magnitude,
		SizeUnit:       unit,
		Classification: classification,
		Address:        evt.Address,
		MonitoringID:   evt.MonitoringID,
	}
	if evt.Latitude != nil && evt.Longitude != nil {
		record.Coordinates = &installations.Coordinates{Latitude: *evt.Latitude, Longitude: *evt.Longitude}
	}
	return s.records.Create(ctx, record)
}

func (s *Synthesizer) provisionTrackers(ctx context.Context, record *installations.InstallationRecord, evt intakeevents.RequestReceived) (int, error) {
	templates, err := s.templates.ListActive(ctx, record.TenantID, record.Kind)
	if err != nil {
		return 0, err
	}
	technicianID := ""
	if len(evt.Technicians) > 0 {
		technicianID = evt.Technicians[0]
	}
	provisioned := 0
	for _, template := range templates {
		if _, err := s.trackers.Provision(ctx, record.ID, template.ID, technicianID); err != nil {
			// Redelivery provisions the same pair again; the duplicate is fine.
			if errors.Is(err, checklists.ErrDuplicateTracker) {
				continue
			}
			return provisioned, err
		}
		provisioned++
	}
	return provisioned, nil
}

// parseLegacySize parses old free-text sizes like "5kW" or "20 Mbps".
func parseLegacySize(input string, mapping Mapping) (float64, string) {
	trimmed := strings.TrimSpace(input)
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	magnitude, err := strconv.ParseFloat(trimmed[:split], 64)
	if err != nil {
		return 0, ""
	}
	return magnitude, mapping.NormalizeSizeUnit(strings.TrimSpace(trimmed[split:]))
}
