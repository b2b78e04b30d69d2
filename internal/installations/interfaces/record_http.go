package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"solarops-cloud/internal/audit"
	"solarops-cloud/internal/auth"
	checklists "solarops-cloud/internal/checklists/domain"
	installapp "solarops-cloud/internal/installations/application"
	installations "solarops-cloud/internal/installations/domain"
	"solarops-cloud/internal/observability/metrics"
)

// TrackerLister reads the checklist trackers attached to a record, used by
// the export dossier.
type TrackerLister interface {
	ListByRecord(ctx context.Context, recordID string) ([]*checklists.Tracker, error)
}

// RecordHandler handles installation record APIs.
type RecordHandler struct {
	service       *installapp.Service
	trackers      TrackerLister
	recordChecker auth.RecordTenantChecker
	auditLogger   audit.Logger
}

// NewRecordHandler constructs a handler.
func NewRecordHandler(service *installapp.Service, trackers TrackerLister, recordChecker auth.RecordTenantChecker, auditLogger audit.Logger) (*RecordHandler, error) {
	if service == nil {
		return nil, errors.New("record handler: nil service")
	}
	return &RecordHandler{service: service, trackers: trackers, recordChecker: recordChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP handles record routes under /api/v1/installations.
func (h *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "/api/v1/installations" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if strings.HasPrefix(path, "/api/v1/installations/") {
		rest := strings.TrimPrefix(path, "/api/v1/installations/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *RecordHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if err := h.ensureRecordTenant(r, id); err != nil {
		respondTenantError(w, err)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "status":
			if r.Method == http.MethodPost {
				h.handleStatus(w, r, id)
				return
			}
		case "technicians":
			if r.Method == http.MethodPost {
				h.handleAssignTechnician(w, r, id)
				return
			}
		case "components":
			if r.Method == http.MethodPost {
				h.handleAttachComponent(w, r, id)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, id)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExportXLSX(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *RecordHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID     string   `json:"request_id"`
		CustomerID    string   `json:"customer_id"`
		OrderID       string   `json:"order_id"`
		Kind          string   `json:"kind"`
		SizeMagnitude float64  `json:"size_magnitude"`
		SizeUnit      string   `json:"size_unit"`
		Address       string   `json:"address"`
		Latitude      *float64 `json:"latitude"`
		Longitude     *float64 `json:"longitude"`
		MonitoringID  string   `json:"monitoring_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		http.Error(w, "kind required", http.StatusBadRequest)
		return
	}
	record := &installations.InstallationRecord{
		TenantID:      auth.TenantIDFromContext(r.Context()),
		RequestID:     req.RequestID,
		CustomerID:    req.CustomerID,
		OrderID:       req.OrderID,
		Kind:          req.Kind,
		SizeMagnitude: req.SizeMagnitude,
		SizeUnit:      req.SizeUnit,
		Address:       req.Address,
		MonitoringID:  req.MonitoringID,
	}
	if req.Latitude != nil && req.Longitude != nil {
		record.Coordinates = &installations.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	created, err := h.service.Create(r.Context(), record)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
	h.logAudit(r, created.ID, "installation.create", map[string]any{
		"kind":       created.Kind,
		"request_id": created.RequestID,
	})
}

func (h *RecordHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	status := r.URL.Query().Get("status")
	if status != "" && !installations.ValidStatus(status) {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	list, err := h.service.List(r.Context(), tenantID, status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *RecordHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

func (h *RecordHandler) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	record, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
	h.logAudit(r, id, "installation.status", map[string]any{
		"status": req.Status,
	})
}

func (h *RecordHandler) handleAssignTechnician(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		TechnicianID string `json:"technician_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TechnicianID) == "" {
		http.Error(w, "technician_id required", http.StatusBadRequest)
		return
	}
	record, err := h.service.AssignTechnician(r.Context(), id, req.TechnicianID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
	h.logAudit(r, id, "installation.assign_technician", map[string]any{
		"technician_id": req.TechnicianID,
	})
}

func (h *RecordHandler) handleAttachComponent(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ComponentID string `json:"component_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ComponentID) == "" {
		http.Error(w, "component_id required", http.StatusBadRequest)
		return
	}
	record, err := h.service.AttachComponent(r.Context(), id, req.ComponentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
	h.logAudit(r, id, "installation.attach_component", map[string]any{
		"component_id": req.ComponentID,
	})
}

func (h *RecordHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveRecordExport("pdf", result, time.Since(start))
	}()

	record, trackers, err := h.loadForExport(r, id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildRecordPDF(record, trackers)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, id, "installation.export", map[string]any{"format": "pdf"})
}

func (h *RecordHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveRecordExport("xlsx", result, time.Since(start))
	}()

	record, trackers, err := h.loadForExport(r, id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildRecordXLSX(record, trackers)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, id, "installation.export", map[string]any{"format": "xlsx"})
}

func (h *RecordHandler) loadForExport(r *http.Request, id string) (*installations.InstallationRecord, []*checklists.Tracker, error) {
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	var trackers []*checklists.Tracker
	if h.trackers != nil {
		trackers, err = h.trackers.ListByRecord(r.Context(), id)
		if err != nil {
			return nil, nil, err
		}
	}
	return record, trackers, nil
}

func (h *RecordHandler) ensureRecordTenant(r *http.Request, recordID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if h.recordChecker == nil || tenantID == "" || recordID == "" {
		return nil
	}
	return h.recordChecker.EnsureRecordTenant(r.Context(), tenantID, recordID)
}

func (h *RecordHandler) logAudit(r *http.Request, recordID, action string, meta map[string]any) {
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
		ResourceType: "installation_record",
		ResourceID:   recordID,
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

func respondServiceError(w http.ResponseWriter, err error) {
	var blocked *installations.CommissioningBlockedError
	if errors.As(err, &blocked) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":    "commissioning blocked",
			"record":   blocked.RecordID,
			"target":   blocked.Target,
			"blocking": blocked.Blocking,
		})
		return
	}
	switch {
	case errors.Is(err, installations.ErrRecordNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, installations.ErrUnknownStatus):
		http.Error(w, "unknown status", http.StatusBadRequest)
	case errors.Is(err, installations.ErrIllegalTransition):
		http.Error(w, "illegal transition", http.StatusConflict)
	case errors.Is(err, installations.ErrDuplicateRequest):
		http.Error(w, "duplicate request", http.StatusConflict)
	case errors.Is(err, installations.ErrNilRecord):
		http.Error(w, "invalid record", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
