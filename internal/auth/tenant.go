package auth

import (
	"context"
	"database/sql"
	"errors"

	installrepo "solarops-cloud/internal/installations/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// RecordTenantChecker validates installation record tenant ownership.
type RecordTenantChecker interface {
	EnsureRecordTenant(ctx context.Context, tenantID, recordID string) error
}

// RecordChecker checks record ownership against the record store.
type RecordChecker struct {
	repo *installrepo.RecordRepository
}

// NewRecordChecker constructs a RecordChecker.
func NewRecordChecker(db *sql.DB) *RecordChecker {
	if db == nil {
		return nil
	}
	return &RecordChecker{repo: installrepo.NewRecordRepository(db)}
}

// EnsureRecordTenant verifies the record belongs to the tenant.
func (c *RecordChecker) EnsureRecordTenant(ctx context.Context, tenantID, recordID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || recordID == "" {
		return nil
	}
	record, err := c.repo.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotFound
	}
	if record.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
