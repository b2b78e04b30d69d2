package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"solarops-cloud/internal/audit"
	"solarops-cloud/internal/auth"
	checklistapp "solarops-cloud/internal/checklists/application"
	checklists "solarops-cloud/internal/checklists/domain"
)

// ChecklistHandler handles template registry and tracker APIs.
type ChecklistHandler struct {
	templates     *checklistapp.TemplateService
	trackers      *checklistapp.TrackerService
	recordChecker auth.RecordTenantChecker
	auditLogger   audit.Logger
}

// NewChecklistHandler constructs a handler.
func NewChecklistHandler(templates *checklistapp.TemplateService, trackers *checklistapp.TrackerService, recordChecker auth.RecordTenantChecker, auditLogger audit.Logger) (*ChecklistHandler, error) {
	if templates == nil {
		return nil, errors.New("checklist handler: nil template service")
	}
	if trackers == nil {
		return nil, errors.New("checklist handler: nil tracker service")
	}
	return &ChecklistHandler{templates: templates, trackers: trackers, recordChecker: recordChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP handles checklist routes under /api/v1/checklists.
func (h *ChecklistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/checklists/templates":
		switch r.Method {
		case http.MethodPost:
			h.handleTemplateCreate(w, r)
		case http.MethodGet:
			h.handleTemplateList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/checklists/templates/"):
		h.handleTemplateByID(w, r, strings.TrimPrefix(path, "/api/v1/checklists/templates/"))
	case path == "/api/v1/checklists/trackers":
		switch r.Method {
		case http.MethodPost:
			h.handleTrackerProvision(w, r)
		case http.MethodGet:
			h.handleTrackerList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(path, "/api/v1/checklists/trackers/"):
		h.handleTrackerByID(w, r, strings.TrimPrefix(path, "/api/v1/checklists/trackers/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ChecklistHandler) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var def checklistapp.TemplateDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		def.TenantID = tenantID
	}
	template, err := h.templates.Create(r.Context(), def)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(template)
	h.logAudit(r, "checklist_template", template.ID, "", "template.create", map[string]any{
		"name":  template.Name,
		"phase": template.Phase,
		"items": len(template.Items),
	})
}

func (h *ChecklistHandler) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	kind := r.URL.Query().Get("kind")
	list, err := h.templates.ListActive(r.Context(), tenantID, kind)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *ChecklistHandler) handleTemplateByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		template, err := h.templates.Get(r.Context(), id)
		if err != nil {
			respondChecklistError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(template)
		return
	}
	if len(parts) == 2 && parts[1] == "duplicate" && r.Method == http.MethodPost {
		dup, err := h.templates.Duplicate(r.Context(), id)
		if err != nil {
			respondChecklistError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dup)
		h.logAudit(r, "checklist_template", dup.ID, "", "template.duplicate", map[string]any{
			"source": id,
		})
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ChecklistHandler) handleTrackerProvision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordID     string `json:"record_id"`
		TemplateID   string `json:"template_id"`
		TechnicianID string `json:"technician_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.RecordID == "" || req.TemplateID == "" {
		http.Error(w, "record_id and template_id required", http.StatusBadRequest)
		return
	}
	if err := h.ensureRecordTenant(r, req.RecordID); err != nil {
		respondTenantError(w, err)
		return
	}
	tracker, err := h.trackers.Provision(r.Context(), req.RecordID, req.TemplateID, req.TechnicianID)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tracker)
	h.logAudit(r, "checklist_tracker", tracker.ID, tracker.RecordID, "tracker.provision", map[string]any{
		"template_id": req.TemplateID,
	})
}

func (h *ChecklistHandler) handleTrackerList(w http.ResponseWriter, r *http.Request) {
	recordID := r.URL.Query().Get("record_id")
	if recordID == "" {
		http.Error(w, "record_id required", http.StatusBadRequest)
		return
	}
	if err := h.ensureRecordTenant(r, recordID); err != nil {
		respondTenantError(w, err)
		return
	}
	list, err := h.trackers.ListByRecord(r.Context(), recordID)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *ChecklistHandler) handleTrackerByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		tracker, err := h.trackers.Get(r.Context(), id)
		if err != nil {
			respondChecklistError(w, err)
			return
		}
		if err := h.ensureRecordTenant(r, tracker.RecordID); err != nil {
			respondTenantError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tracker)
		return
	}
	if len(parts) == 3 && parts[1] == "items" && r.Method == http.MethodPost {
		h.handleItemEvidence(w, r, id, parts[2])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ChecklistHandler) handleItemEvidence(w http.ResponseWriter, r *http.Request, trackerID, itemID string) {
	var req struct {
		Completed   bool                  `json:"completed"`
		Notes       string                `json:"notes"`
		PhotoRefs   []checklists.PhotoRef `json:"photo_refs"`
		SubmittedAt *time.Time            `json:"submitted_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	// Tenant ownership is settled before the write: the tracker is loaded
	// first so a caller from another tenant never mutates evidence.
	existing, err := h.trackers.Get(r.Context(), trackerID)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	if err := h.ensureRecordTenant(r, existing.RecordID); err != nil {
		respondTenantError(w, err)
		return
	}
	submittedAt := time.Now().UTC()
	if req.SubmittedAt != nil {
		submittedAt = req.SubmittedAt.UTC()
	}
	update := checklists.EvidenceUpdate{
		Completed:   req.Completed,
		Notes:       req.Notes,
		PhotoRefs:   req.PhotoRefs,
		SubmittedBy: auth.SubjectFromContext(r.Context()),
		SubmittedAt: submittedAt,
	}
	tracker, err := h.trackers.UpdateItem(r.Context(), trackerID, itemID, update)
	if err != nil {
		respondChecklistError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tracker)
	h.logAudit(r, "checklist_tracker", trackerID, tracker.RecordID, "tracker.item_update", map[string]any{
		"item_id":   itemID,
		"completed": req.Completed,
		"photos":    len(req.PhotoRefs),
	})
}

func (h *ChecklistHandler) ensureRecordTenant(r *http.Request, recordID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if h.recordChecker == nil || tenantID == "" || recordID == "" {
		return nil
	}
	return h.recordChecker.EnsureRecordTenant(r.Context(), tenantID, recordID)
}

func (h *ChecklistHandler) logAudit(r *http.Request, resourceType, resourceID, recordID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RecordID:     recordID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check error", http.StatusInternalServerError)
}

func respondChecklistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checklists.ErrTemplateNotFound):
		http.Error(w, "template not found", http.StatusNotFound)
	case errors.Is(err, checklists.ErrTrackerNotFound):
		http.Error(w, "tracker not found", http.StatusNotFound)
	case errors.Is(err, checklists.ErrDuplicateTracker):
		http.Error(w, "tracker already provisioned", http.StatusConflict)
	case errors.Is(err, checklists.ErrUnknownItem):
		http.Error(w, "unknown checklist item", http.StatusNotFound)
	case errors.Is(err, checklists.ErrEmptyName),
		errors.Is(err, checklists.ErrInvalidPhase),
		errors.Is(err, checklists.ErrNoItems),
		errors.Is(err, checklists.ErrEmptyItemID),
		errors.Is(err, checklists.ErrDuplicateItemID),
		errors.Is(err, checklists.ErrInvalidPhotoCount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
