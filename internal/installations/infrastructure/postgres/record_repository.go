package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	installations "solarops-cloud/internal/installations/domain"
)

const defaultRecordsTable = "installation_records"

// DBTX is the shared query surface of *sql.DB and *sql.Tx.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordRepository is a Postgres implementation for installation records.
type RecordRepository struct {
	db    DBTX
	table string
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db DBTX, opts ...RecordOption) *RecordRepository {
	repo := &RecordRepository{db: db, table: defaultRecordsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RecordOption configures the repository.
type RecordOption func(*RecordRepository)

// WithRecordsTable overrides the default table name.
func WithRecordsTable(table string) RecordOption {
	return func(repo *RecordRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const recordColumns = `
id, short_code, tenant_id, request_id, customer_id, order_id, kind,
size_magnitude, size_unit, classification, status,
installation_date, commissioning_date, latitude, longitude, address,
monitoring_id, technicians, components, created_at, updated_at`

// Get loads a record by id.
func (r *RecordRepository) Get(ctx context.Context, id string) (*installations.InstallationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if id == "" {
		return nil, installations.ErrEmptyRecordID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, recordColumns, r.table)
	return r.scanRecord(r.db.QueryRowContext(ctx, query, id))
}

// FindByRequestID loads the record linked to an intake request.
func (r *RecordRepository) FindByRequestID(ctx context.Context, requestID string) (*installations.InstallationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if requestID == "" {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE request_id = $1 LIMIT 1`, recordColumns, r.table)
	return r.scanRecord(r.db.QueryRowContext(ctx, query, requestID))
}

// List returns records filtered by tenant and optional status, newest first.
func (r *RecordRepository) List(ctx context.Context, tenantID, status string) ([]*installations.InstallationRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE ($1 = '' OR tenant_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC`, recordColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*installations.InstallationRecord
	for rows.Next() {
		record, err := r.scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Save upserts a record. The unique index on request_id enforces the
// one-record-per-request invariant.
func (r *RecordRepository) Save(ctx context.Context, record *installations.InstallationRecord) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if record == nil {
		return installations.ErrNilRecord
	}
	if record.ID == "" {
		return installations.ErrEmptyRecordID
	}

	technicians, err := json.Marshal(record.Technicians)
	if err != nil {
		return err
	}
	components, err := json.Marshal(record.Components)
	if err != nil {
		return err
	}

	var latitude, longitude sql.NullFloat64
	if record.Coordinates != nil {
		latitude = sql.NullFloat64{Float64: record.Coordinates.Latitude, Valid: true}
		longitude = sql.NullFloat64{Float64: record.Coordinates.Longitude, Valid: true}
	}
	var installationDate, commissioningDate sql.NullTime
	if record.InstallationDate != nil {
		installationDate = sql.NullTime{Time: record.InstallationDate.UTC(), Valid: true}
	}
	if record.CommissioningDate != nil {
		commissioningDate = sql.NullTime{Time: record.CommissioningDate.UTC(), Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, short_code, tenant_id, request_id, customer_id, order_id, kind,
	size_magnitude, size_unit, classification, status,
	installation_date, commissioning_date, latitude, longitude, address,
	monitoring_id, technicians, components, created_at, updated_at
) VALUES (
	$1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
ON CONFLICT (id) DO UPDATE SET
	short_code = EXCLUDED.short_code,
	customer_id = EXCLUDED.customer_id,
	order_id = EXCLUDED.order_id,
	kind = EXCLUDED.kind,
	size_magnitude = EXCLUDED.size_magnitude,
	size_unit = EXCLUDED.size_unit,
	classification = EXCLUDED.classification,
	status = EXCLUDED.status,
	installation_date = EXCLUDED.installation_date,
	commissioning_date = EXCLUDED.commissioning_date,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	address = EXCLUDED.address,
	monitoring_id = EXCLUDED.monitoring_id,
	technicians = EXCLUDED.technicians,
	components = EXCLUDED.components,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.ShortCode, record.TenantID, record.RequestID,
		record.CustomerID, record.OrderID, record.Kind,
		record.SizeMagnitude, record.SizeUnit, record.Classification, record.Status,
		installationDate, commissioningDate, latitude, longitude, record.Address,
		record.MonitoringID, technicians, components,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RecordRepository) scanRecord(row *sql.Row) (*installations.InstallationRecord, error) {
	record, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *RecordRepository) scanRecordRows(rows *sql.Rows) (*installations.InstallationRecord, error) {
	return scanInto(rows)
}

func scanInto(scanner rowScanner) (*installations.InstallationRecord, error) {
	var record installations.InstallationRecord
	var requestID sql.NullString
	var installationDate, commissioningDate sql.NullTime
	var latitude, longitude sql.NullFloat64
	var technicians, components []byte

	if err := scanner.Scan(
		&record.ID, &record.ShortCode, &record.TenantID, &requestID,
		&record.CustomerID, &record.OrderID, &record.Kind,
		&record.SizeMagnitude, &record.SizeUnit, &record.Classification, &record.Status,
		&installationDate, &commissioningDate, &latitude, &longitude, &record.Address,
		&record.MonitoringID, &technicians, &components,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.RequestID = requestID.String
	if installationDate.Valid {
		at := installationDate.Time.UTC()
		record.InstallationDate = &at
	}
	if commissioningDate.Valid {
		at := commissioningDate.Time.UTC()
		record.CommissioningDate = &at
	}
	if latitude.Valid && longitude.Valid {
		record.Coordinates = &installations.Coordinates{
			Latitude:  latitude.Float64,
			Longitude: longitude.Float64,
		}
	}
	if len(technicians) > 0 {
		if err := json.Unmarshal(technicians, &record.Technicians); err != nil {
			return nil, err
		}
	}
	if len(components) > 0 {
		if err := json.Unmarshal(components, &record.Components); err != nil {
			return nil, err
		}
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}
