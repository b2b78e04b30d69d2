package memory

import (
	"context"
	"sync"

	installations "solarops-cloud/internal/installations/domain"
)

// RecordRepository is an in-memory repository for installation records.
type RecordRepository struct {
	mu        sync.RWMutex
	data      map[string]*installations.InstallationRecord
	byRequest map[string]string
}

// NewRecordRepository constructs a repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		data:      make(map[string]*installations.InstallationRecord),
		byRequest: make(map[string]string),
	}
}

// Get loads a record by id.
func (r *RecordRepository) Get(ctx context.Context, id string) (*installations.InstallationRecord, error) {
	_ = ctx
	if id == "" {
		return nil, installations.ErrEmptyRecordID
	}
	r.mu.RLock()
	record := r.data[id]
	r.mu.RUnlock()
	if record == nil {
		return nil, nil
	}
	return record.Clone(), nil
}

// FindByRequestID loads the record linked to an intake request.
func (r *RecordRepository) FindByRequestID(ctx context.Context, requestID string) (*installations.InstallationRecord, error) {
	_ = ctx
	if requestID == "" {
		return nil, nil
	}
	r.mu.RLock()
	record := r.data[r.byRequest[requestID]]
	r.mu.RUnlock()
	if record == nil {
		return nil, nil
	}
	return record.Clone(), nil
}

// List returns records filtered by tenant and optional status.
func (r *RecordRepository) List(ctx context.Context, tenantID, status string) ([]*installations.InstallationRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var records []*installations.InstallationRecord
	for _, record := range r.data {
		if tenantID != "" && record.TenantID != tenantID {
			continue
		}
		if status != "" && record.Status != status {
			continue
		}
		records = append(records, record.Clone())
	}
	return records, nil
}

// Save upserts a record. The one-record-per-request invariant is enforced
// here the way the unique index does on Postgres.
func (r *RecordRepository) Save(ctx context.Context, record *installations.InstallationRecord) error {
	_ = ctx
	if record == nil {
		return installations.ErrNilRecord
	}
	if record.ID == "" {
		return installations.ErrEmptyRecordID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if record.RequestID != "" {
		if existingID, ok := r.byRequest[record.RequestID]; ok && existingID != record.ID {
			return installations.ErrDuplicateRequest
		}
	}
	r.data[record.ID] = record.Clone()
	if record.RequestID != "" {
		r.byRequest[record.RequestID] = record.ID
	}
	return nil
}
