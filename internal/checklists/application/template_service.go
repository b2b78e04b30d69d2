package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	checklists "solarops-cloud/internal/checklists/domain"
)

// TemplateRepository persists checklist templates.
type TemplateRepository interface {
	Get(ctx context.Context, id string) (*checklists.Template, error)
	ListActive(ctx context.Context, tenantID, kind string) ([]*checklists.Template, error)
	Save(ctx context.Context, template *checklists.Template) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// TemplateDefinition is the authoring payload for a new template.
type TemplateDefinition struct {
	TenantID string                     `json:"tenant_id"`
	Name     string                     `json:"name"`
	Phase    string                     `json:"phase"`
	Kind     string                     `json:"kind"`
	Items    []checklists.ChecklistItem `json:"items"`
	Active   *bool                      `json:"active,omitempty"`
}

// TemplateService is the checklist template registry.
type TemplateService struct {
	repo  TemplateRepository
	clock Clock
}

// NewTemplateService constructs a registry service.
func NewTemplateService(repo TemplateRepository, clock Clock) (*TemplateService, error) {
	if repo == nil {
		return nil, errors.New("checklists: nil template repo")
	}
	if clock == nil {
		return nil, errors.New("checklists: nil clock")
	}
	return &TemplateService{repo: repo, clock: clock}, nil
}

// Create validates and stores a new template. New templates default to active.
func (s *TemplateService) Create(ctx context.Context, def TemplateDefinition) (*checklists.Template, error) {
	now := s.clock.Now()
	active := true
	if def.Active != nil {
		active = *def.Active
	}
	template := &checklists.Template{
		ID:        "ctpl-" + buildShortID(def.TenantID+def.Name+now.Format(time.RFC3339Nano)),
		TenantID:  def.TenantID,
		Name:      def.Name,
		Phase:     def.Phase,
		Kind:      def.Kind,
		Items:     append([]checklists.ChecklistItem(nil), def.Items...),
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, template); err != nil {
		return nil, err
	}
	return template.Clone(), nil
}

// Get loads a template by id.
func (s *TemplateService) Get(ctx context.Context, templateID string) (*checklists.Template, error) {
	template, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, checklists.ErrTemplateNotFound
	}
	return template, nil
}

// ListActive returns active templates whose scope matches the kind; an empty
// kind returns every active template.
func (s *TemplateService) ListActive(ctx context.Context, tenantID, kind string) ([]*checklists.Template, error) {
	return s.repo.ListActive(ctx, tenantID, kind)
}

// Duplicate deep-copies a template under a new identity to seed a variant.
func (s *TemplateService) Duplicate(ctx context.Context, templateID string) (*checklists.Template, error) {
	source, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, checklists.ErrTemplateNotFound
	}
	now := s.clock.Now()
	copied := source.Duplicate("ctpl-"+buildShortID(source.ID+now.Format(time.RFC3339Nano)), now)
	if err := s.repo.Save(ctx, copied); err != nil {
		return nil, err
	}
	return copied.Clone(), nil
}

func buildShortID(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:8])
}
