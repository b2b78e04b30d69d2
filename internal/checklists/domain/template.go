package checklists

import "time"

const (
	PhasePreInstall    = "pre_install"
	PhaseInstall       = "install"
	PhaseCommissioning = "commissioning"
)

// ChecklistItem is a single verification step declared by a template.
type ChecklistItem struct {
	ItemID        string `json:"item_id"`
	Title         string `json:"title"`
	Required      bool   `json:"required"`
	RequiresPhoto bool   `json:"requires_photo"`
	PhotoCount    int    `json:"photo_count"`
	NotesRequired bool   `json:"notes_required"`
}

// Template is an authored, reusable checklist definition for a phase of work.
// Kind scopes the template to one installation kind; empty means all kinds.
type Template struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Phase     string          `json:"phase"`
	Kind      string          `json:"kind"`
	Items     []ChecklistItem `json:"items"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidPhase reports whether the phase tag is supported.
func ValidPhase(phase string) bool {
	switch phase {
	case PhasePreInstall, PhaseInstall, PhaseCommissioning:
		return true
	default:
		return false
	}
}

// Validate checks template invariants.
func (t *Template) Validate() error {
	if t == nil {
		return ErrNilTemplate
	}
	if t.Name == "" {
		return ErrEmptyName
	}
	if !ValidPhase(t.Phase) {
		return ErrInvalidPhase
	}
	if len(t.Items) == 0 {
		return ErrNoItems
	}
	seen := make(map[string]struct{}, len(t.Items))
	for _, item := range t.Items {
		if item.ItemID == "" {
			return ErrEmptyItemID
		}
		if _, ok := seen[item.ItemID]; ok {
			return ErrDuplicateItemID
		}
		seen[item.ItemID] = struct{}{}
		if item.RequiresPhoto && item.PhotoCount < 1 {
			return ErrInvalidPhotoCount
		}
	}
	return nil
}

// Item returns the declared item for an id.
func (t *Template) Item(itemID string) (ChecklistItem, bool) {
	if t == nil {
		return ChecklistItem{}, false
	}
	for _, item := range t.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return ChecklistItem{}, false
}

// AppliesTo reports whether the template scope matches an installation kind.
func (t *Template) AppliesTo(kind string) bool {
	if t == nil {
		return false
	}
	return t.Kind == "" || t.Kind == kind
}

// Duplicate returns a deep copy under a new identity with tracker linkage
// cleared, used to seed template variants.
func (t *Template) Duplicate(newID string, now time.Time) *Template {
	if t == nil {
		return nil
	}
	copied := *t
	copied.ID = newID
	copied.Name = t.Name + " (copy)"
	copied.Items = append([]ChecklistItem(nil), t.Items...)
	copied.CreatedAt = now
	copied.UpdatedAt = now
	return &copied
}

// Clone returns a detached copy.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	copied := *t
	copied.Items = append([]ChecklistItem(nil), t.Items...)
	return &copied
}
