package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	installevents "solarops-cloud/internal/installations/application/events"
	installations "solarops-cloud/internal/installations/domain"
	"solarops-cloud/internal/eventing"
	"solarops-cloud/internal/observability/metrics"
)

// Repository persists installation records.
type Repository interface {
	Get(ctx context.Context, id string) (*installations.InstallationRecord, error)
	FindByRequestID(ctx context.Context, requestID string) (*installations.InstallationRecord, error)
	List(ctx context.Context, tenantID, status string) ([]*installations.InstallationRecord, error)
	Save(ctx context.Context, record *installations.InstallationRecord) error
}

// EventPublisher publishes domain events through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Service is the installation record store API: create-from-request,
// gated status transitions, technician assignment and component attachment.
type Service struct {
	repo      Repository
	gate      *CommissioningGate
	publisher EventPublisher
	clock     Clock
}

// NewService constructs a record service.
func NewService(repo Repository, gate *CommissioningGate, publisher EventPublisher, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("installations: nil repo")
	}
	if gate == nil {
		return nil, errors.New("installations: nil gate")
	}
	if clock == nil {
		return nil, errors.New("installations: nil clock")
	}
	return &Service{repo: repo, gate: gate, publisher: publisher, clock: clock}, nil
}

// Create persists a new record, assigning identity and short code.
func (s *Service) Create(ctx context.Context, record *installations.InstallationRecord) (*installations.InstallationRecord, error) {
	if record == nil {
		return nil, installations.ErrNilRecord
	}
	now := s.clock.Now()
	if record.ID == "" {
		record.ID = "inst-" + buildShortID(record.TenantID+record.RequestID+now.Format(time.RFC3339Nano))
	}
	if record.ShortCode == "" {
		record.ShortCode = installations.BuildShortCode(record.Kind, record.ID)
	}
	if record.Status == "" {
		record.Status = installations.StatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if record.RequestID != "" {
		existing, err := s.repo.FindByRequestID(ctx, record.RequestID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, installations.ErrDuplicateRequest
		}
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, installevents.RecordCreated{
			EventID:    eventing.NewEventID(),
			RecordID:   record.ID,
			RequestID:  record.RequestID,
			TenantID:   record.TenantID,
			Kind:       record.Kind,
			OccurredAt: now,
		})
	}
	return record.Clone(), nil
}

// Get loads a record by id.
func (s *Service) Get(ctx context.Context, recordID string) (*installations.InstallationRecord, error) {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, installations.ErrRecordNotFound
	}
	return record, nil
}

// FindByRequestID loads the record linked to an intake request, nil when absent.
func (s *Service) FindByRequestID(ctx context.Context, requestID string) (*installations.InstallationRecord, error) {
	return s.repo.FindByRequestID(ctx, requestID)
}

// List returns records filtered by tenant and optional status.
func (s *Service) List(ctx context.Context, tenantID, status string) ([]*installations.InstallationRecord, error) {
	if status != "" && !installations.ValidStatus(status) {
		return nil, installations.ErrUnknownStatus
	}
	return s.repo.List(ctx, tenantID, status)
}

// UpdateStatus attempts a lifecycle transition. The commissioning gate runs
// as a precondition for the completion states: a rejected transition leaves
// the record untouched and returns CommissioningBlockedError with the
// blocking checklist detail. A same-state call is an idempotent success.
func (s *Service) UpdateStatus(ctx context.Context, recordID, target string) (*installations.InstallationRecord, error) {
	if !installations.ValidStatus(target) {
		return nil, installations.ErrUnknownStatus
	}
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, installations.ErrRecordNotFound
	}
	if record.Status == target {
		return record, nil
	}
	if !installations.CanTransition(record.Status, target) {
		metrics.IncStatusTransition(record.Status, target, "illegal")
		return nil, installations.ErrIllegalTransition
	}

	decision, err := s.gate.CanTransition(ctx, record, target)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.IncGateDecision("blocked")
		return nil, &installations.CommissioningBlockedError{
			RecordID: record.ID,
			Target:   target,
			Blocking: decision.Blocking,
		}
	}
	if target == installations.StatusCommissioned || target == installations.StatusActive {
		metrics.IncGateDecision("allowed")
	}

	from := record.Status
	now := s.clock.Now()
	if err := record.TransitionTo(target, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	metrics.IncStatusTransition(from, target, "applied")

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, installevents.RecordStatusChanged{
			EventID:    eventing.NewEventID(),
			RecordID:   record.ID,
			RequestID:  record.RequestID,
			TenantID:   record.TenantID,
			FromStatus: from,
			ToStatus:   target,
			OccurredAt: now,
		})
	}
	return record.Clone(), nil
}

// AssignTechnician adds a technician to the record's assigned set.
func (s *Service) AssignTechnician(ctx context.Context, recordID, technicianID string) (*installations.InstallationRecord, error) {
	if technicianID == "" {
		return nil, errors.New("installations: empty technician id")
	}
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, installations.ErrRecordNotFound
	}
	if record.AssignTechnician(technicianID) {
		record.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, record); err != nil {
			return nil, err
		}
	}
	return record.Clone(), nil
}

// AttachComponent links an installed component to the record.
func (s *Service) AttachComponent(ctx context.Context, recordID, componentID string) (*installations.InstallationRecord, error) {
	if componentID == "" {
		return nil, errors.New("installations: empty component id")
	}
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, installations.ErrRecordNotFound
	}
	if record.AttachComponent(componentID) {
		record.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, record); err != nil {
			return nil, err
		}
	}
	return record.Clone(), nil
}

func buildShortID(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:8])
}
