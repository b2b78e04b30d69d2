package checklists

import (
	"sort"
	"time"
)

const (
	TrackerStatusNotStarted = "not_started"
	TrackerStatusInProgress = "in_progress"
	TrackerStatusCompleted  = "completed"
)

// PhotoRef is one photo-evidence reference attached to an item.
type PhotoRef struct {
	EvidenceID string    `json:"evidence_id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ItemEvidence is the recorded completion state of one checklist item.
type ItemEvidence struct {
	Completed   bool       `json:"completed"`
	CompletedAt time.Time  `json:"completed_at"`
	Notes       string     `json:"notes"`
	PhotoRefs   []PhotoRef `json:"photo_refs"`
	CompletedBy string     `json:"completed_by"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// EvidenceUpdate is one technician submission for a single item.
type EvidenceUpdate struct {
	Completed   bool
	Notes       string
	PhotoRefs   []PhotoRef
	SubmittedBy string
	SubmittedAt time.Time
}

// Tracker is a per-installation instance of a template recording actual
// completion evidence. Template items are snapshotted at provisioning time so
// completion math never depends on later template edits.
type Tracker struct {
	ID            string                  `json:"id"`
	RecordID      string                  `json:"record_id"`
	TemplateID    string                  `json:"template_id"`
	TemplateName  string                  `json:"template_name"`
	Phase         string                  `json:"phase"`
	TechnicianID  string                  `json:"technician_id"`
	TemplateItems []ChecklistItem         `json:"template_items"`
	Evidence      map[string]ItemEvidence `json:"evidence"`
	Status        string                  `json:"status"`
	Percentage    int                     `json:"percentage"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewTracker provisions a tracker for a record from a template snapshot.
func NewTracker(id, recordID string, template *Template, technicianID string, now time.Time) (*Tracker, error) {
	if template == nil {
		return nil, ErrNilTemplate
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	tracker := &Tracker{
		ID:            id,
		RecordID:      recordID,
		TemplateID:    template.ID,
		TemplateName:  template.Name,
		Phase:         template.Phase,
		TechnicianID:  technicianID,
		TemplateItems: append([]ChecklistItem(nil), template.Items...),
		Evidence:      make(map[string]ItemEvidence),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tracker.Recompute()
	return tracker, nil
}

// Item returns the snapshotted item declaration for an id.
func (t *Tracker) Item(itemID string) (ChecklistItem, bool) {
	for _, item := range t.TemplateItems {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return ChecklistItem{}, false
}

// ApplyEvidence merges one submission into the per-item slot.
//
// Photo references merge by set-union keyed on evidence id, so a double
// submission is idempotent and two actors can submit photos concurrently.
// The scalar fields (completed, notes, completed_by) resolve by
// last-writer-wins on the submission timestamp, not arrival order: an older
// submission arriving late contributes its photos but never overwrites a
// newer decision.
func (t *Tracker) ApplyEvidence(itemID string, update EvidenceUpdate) error {
	if t == nil {
		return ErrNilTracker
	}
	if _, ok := t.Item(itemID); !ok {
		return ErrUnknownItem
	}

	submittedAt := update.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	if t.Evidence == nil {
		t.Evidence = make(map[string]ItemEvidence)
	}
	evidence, exists := t.Evidence[itemID]
	evidence.PhotoRefs = mergePhotoRefs(evidence.PhotoRefs, update.PhotoRefs)

	if !exists || !submittedAt.Before(evidence.SubmittedAt) {
		evidence.Completed = update.Completed
		evidence.Notes = update.Notes
		evidence.CompletedBy = update.SubmittedBy
		evidence.SubmittedAt = submittedAt
		if update.Completed {
			evidence.CompletedAt = submittedAt
		} else {
			evidence.CompletedAt = time.Time{}
		}
	}
	t.Evidence[itemID] = evidence

	t.UpdatedAt = submittedAt
	t.Recompute()
	return nil
}

func mergePhotoRefs(existing, incoming []PhotoRef) []PhotoRef {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	for _, ref := range existing {
		seen[ref.EvidenceID] = struct{}{}
	}
	merged := existing
	for _, ref := range incoming {
		if _, ok := seen[ref.EvidenceID]; ok {
			continue
		}
		seen[ref.EvidenceID] = struct{}{}
		merged = append(merged, ref)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].UploadedAt.Equal(merged[j].UploadedAt) {
			return merged[i].EvidenceID < merged[j].EvidenceID
		}
		return merged[i].UploadedAt.Before(merged[j].UploadedAt)
	})
	return merged
}

// ItemCompleted reports whether a single item counts as completed. An item
// requiring photos is not complete until its evidence list reaches the
// expected photo count.
func (t *Tracker) ItemCompleted(item ChecklistItem) bool {
	evidence, ok := t.Evidence[item.ItemID]
	if !ok || !evidence.Completed {
		return false
	}
	if item.RequiresPhoto && len(evidence.PhotoRefs) < item.PhotoCount {
		return false
	}
	return true
}

// Recompute rederives the completion percentage and overall status.
// Percentage counts required items only, rounded down; a tracker with zero
// required items is 100% complete so optional-only checklists never block
// commissioning.
func (t *Tracker) Recompute() {
	totalRequired := 0
	completedRequired := 0
	for _, item := range t.TemplateItems {
		if !item.Required {
			continue
		}
		totalRequired++
		if t.ItemCompleted(item) {
			completedRequired++
		}
	}

	if totalRequired == 0 {
		t.Percentage = 100
	} else {
		t.Percentage = completedRequired * 100 / totalRequired
	}

	switch {
	case len(t.Evidence) == 0 && totalRequired > 0:
		t.Status = TrackerStatusNotStarted
	case t.IsFullyCompleted():
		t.Status = TrackerStatusCompleted
	default:
		t.Status = TrackerStatusInProgress
	}
}

// IsFullyCompleted reports whether every required item is completed,
// including photo-count requirements. A tracker with no required items is
// vacuously complete.
func (t *Tracker) IsFullyCompleted() bool {
	for _, item := range t.TemplateItems {
		if !item.Required {
			continue
		}
		if !t.ItemCompleted(item) {
			return false
		}
	}
	return true
}

// Clone returns a detached copy.
func (t *Tracker) Clone() *Tracker {
	if t == nil {
		return nil
	}
	copied := *t
	copied.TemplateItems = append([]ChecklistItem(nil), t.TemplateItems...)
	copied.Evidence = make(map[string]ItemEvidence, len(t.Evidence))
	for itemID, evidence := range t.Evidence {
		evidence.PhotoRefs = append([]PhotoRef(nil), evidence.PhotoRefs...)
		copied.Evidence[itemID] = evidence
	}
	return &copied
}
