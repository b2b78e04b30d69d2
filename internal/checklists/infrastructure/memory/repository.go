package memory

import (
	"context"
	"sort"
	"sync"

	checklists "solarops-cloud/internal/checklists/domain"
)

// TemplateRepository is an in-memory repository for checklist templates.
type TemplateRepository struct {
	mu   sync.RWMutex
	data map[string]*checklists.Template
}

// NewTemplateRepository constructs a repository.
func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{data: make(map[string]*checklists.Template)}
}

// Get loads a template by id.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*checklists.Template, error) {
	_ = ctx
	r.mu.RLock()
	template := r.data[id]
	r.mu.RUnlock()
	if template == nil {
		return nil, nil
	}
	return template.Clone(), nil
}

// ListActive returns active templates matching tenant and kind scope,
// ordered by name for stable output.
func (r *TemplateRepository) ListActive(ctx context.Context, tenantID, kind string) ([]*checklists.Template, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var templates []*checklists.Template
	for _, template := range r.data {
		if !template.Active {
			continue
		}
		if tenantID != "" && template.TenantID != tenantID {
			continue
		}
		if kind != "" && !template.AppliesTo(kind) {
			continue
		}
		templates = append(templates, template.Clone())
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// Save upserts a template.
func (r *TemplateRepository) Save(ctx context.Context, template *checklists.Template) error {
	_ = ctx
	if template == nil {
		return checklists.ErrNilTemplate
	}
	r.mu.Lock()
	r.data[template.ID] = template.Clone()
	r.mu.Unlock()
	return nil
}

// TrackerRepository is an in-memory repository for completion trackers.
type TrackerRepository struct {
	mu     sync.RWMutex
	data   map[string]*checklists.Tracker
	byPair map[string]string
}

// NewTrackerRepository constructs a repository.
func NewTrackerRepository() *TrackerRepository {
	return &TrackerRepository{
		data:   make(map[string]*checklists.Tracker),
		byPair: make(map[string]string),
	}
}

func pairKey(recordID, templateID string) string {
	return recordID + "|" + templateID
}

// Get loads a tracker by id.
func (r *TrackerRepository) Get(ctx context.Context, id string) (*checklists.Tracker, error) {
	_ = ctx
	r.mu.RLock()
	tracker := r.data[id]
	r.mu.RUnlock()
	if tracker == nil {
		return nil, nil
	}
	return tracker.Clone(), nil
}

// FindByRecordAndTemplate loads the tracker for a (record, template) pair.
func (r *TrackerRepository) FindByRecordAndTemplate(ctx context.Context, recordID, templateID string) (*checklists.Tracker, error) {
	_ = ctx
	r.mu.RLock()
	tracker := r.data[r.byPair[pairKey(recordID, templateID)]]
	r.mu.RUnlock()
	if tracker == nil {
		return nil, nil
	}
	return tracker.Clone(), nil
}

// ListByRecord returns detached snapshots of every tracker linked to a
// record, in provisioning order. The snapshot is what the commissioning gate
// evaluates: later tracker updates cannot change an evaluation in flight.
func (r *TrackerRepository) ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var trackers []*checklists.Tracker
	for _, tracker := range r.data {
		if tracker.RecordID == recordID {
			trackers = append(trackers, tracker.Clone())
		}
	}
	sort.Slice(trackers, func(i, j int) bool {
		if trackers[i].CreatedAt.Equal(trackers[j].CreatedAt) {
			return trackers[i].ID < trackers[j].ID
		}
		return trackers[i].CreatedAt.Before(trackers[j].CreatedAt)
	})
	return trackers, nil
}

// Save upserts a tracker, enforcing the unique (record, template) pair the
// way the Postgres unique index does.
func (r *TrackerRepository) Save(ctx context.Context, tracker *checklists.Tracker) error {
	_ = ctx
	if tracker == nil {
		return checklists.ErrNilTracker
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(tracker.RecordID, tracker.TemplateID)
	if existingID, ok := r.byPair[key]; ok && existingID != tracker.ID {
		return checklists.ErrDuplicateTracker
	}
	r.data[tracker.ID] = tracker.Clone()
	r.byPair[key] = tracker.ID
	return nil
}
