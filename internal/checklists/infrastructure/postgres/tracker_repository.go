package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	checklists "solarops-cloud/internal/checklists/domain"
)

const defaultTrackersTable = "checklist_trackers"

// TrackerRepository is a Postgres implementation for completion trackers.
type TrackerRepository struct {
	db    DBTX
	table string
}

// NewTrackerRepository constructs a repository.
func NewTrackerRepository(db DBTX, opts ...TrackerOption) *TrackerRepository {
	repo := &TrackerRepository{db: db, table: defaultTrackersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TrackerOption configures the repository.
type TrackerOption func(*TrackerRepository)

// WithTrackersTable overrides the default table name.
func WithTrackersTable(table string) TrackerOption {
	return func(repo *TrackerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const trackerColumns = `
id, record_id, template_id, template_name, phase, technician_id,
template_items, evidence, status, percentage, created_at, updated_at`

// Get loads a tracker by id.
func (r *TrackerRepository) Get(ctx context.Context, id string) (*checklists.Tracker, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracker repo: nil db")
	}
	if id == "" {
		return nil, errors.New("tracker repo: empty id")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, trackerColumns, r.table)
	tracker, err := scanTracker(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tracker, nil
}

// FindByRecordAndTemplate loads the tracker for a (record, template) pair.
func (r *TrackerRepository) FindByRecordAndTemplate(ctx context.Context, recordID, templateID string) (*checklists.Tracker, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracker repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE record_id = $1 AND template_id = $2 LIMIT 1`, trackerColumns, r.table)
	tracker, err := scanTracker(r.db.QueryRowContext(ctx, query, recordID, templateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tracker, nil
}

// ListByRecord returns every tracker linked to a record in provisioning
// order. One query produces the snapshot a gate evaluation decides on.
func (r *TrackerRepository) ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracker repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE record_id = $1 ORDER BY created_at, id`, trackerColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trackers []*checklists.Tracker
	for rows.Next() {
		tracker, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		trackers = append(trackers, tracker)
	}
	return trackers, rows.Err()
}

// Save upserts a tracker. The unique (record_id, template_id) index turns a
// provisioning race into ErrDuplicateTracker.
func (r *TrackerRepository) Save(ctx context.Context, tracker *checklists.Tracker) error {
	if r == nil || r.db == nil {
		return errors.New("tracker repo: nil db")
	}
	if tracker == nil {
		return checklists.ErrNilTracker
	}
	templateItems, err := json.Marshal(tracker.TemplateItems)
	if err != nil {
		return err
	}
	evidence, err := json.Marshal(tracker.Evidence)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, record_id, template_id, template_name, phase, technician_id,
	template_items, evidence, status, percentage, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (id) DO UPDATE SET
	technician_id = EXCLUDED.technician_id,
	evidence = EXCLUDED.evidence,
	status = EXCLUDED.status,
	percentage = EXCLUDED.percentage,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		tracker.ID, tracker.RecordID, tracker.TemplateID, tracker.TemplateName, tracker.Phase,
		tracker.TechnicianID, templateItems, evidence, tracker.Status, tracker.Percentage,
		tracker.CreatedAt.UTC(), tracker.UpdatedAt.UTC(),
	)
	if err != nil && isUniquePairViolation(err) {
		return checklists.ErrDuplicateTracker
	}
	return err
}

// isUniquePairViolation detects the unique (record_id, template_id) index
// firing. The insert upserts on id, so 23505 can only come from that pair.
func isUniquePairViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracker(scanner rowScanner) (*checklists.Tracker, error) {
	var tracker checklists.Tracker
	var templateItems, evidence []byte
	if err := scanner.Scan(
		&tracker.ID, &tracker.RecordID, &tracker.TemplateID, &tracker.TemplateName, &tracker.Phase,
		&tracker.TechnicianID, &templateItems, &evidence, &tracker.Status, &tracker.Percentage,
		&tracker.CreatedAt, &tracker.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(templateItems, &tracker.TemplateItems); err != nil {
		return nil, err
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &tracker.Evidence); err != nil {
			return nil, err
		}
	}
	if tracker.Evidence == nil {
		tracker.Evidence = make(map[string]checklists.ItemEvidence)
	}
	tracker.CreatedAt = tracker.CreatedAt.UTC()
	tracker.UpdatedAt = tracker.UpdatedAt.UTC()
	return &tracker, nil
}
