package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"solarops-cloud/internal/eventing"
	intakeevents "solarops-cloud/internal/intake/application/events"
	"solarops-cloud/internal/observability/metrics"
)

// EventPublisher publishes intake events through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// IngestHandler receives intake request webhooks from the upstream CRM
// channel and publishes RequestReceived events. Synthesis happens on the
// consumer side so a slow projection never blocks the webhook.
type IngestHandler struct {
	publisher EventPublisher
	logger    *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(publisher EventPublisher, logger *log.Logger) (*IngestHandler, error) {
	if publisher == nil {
		return nil, errors.New("intake ingest: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{publisher: publisher, logger: logger}, nil
}

// ServeHTTP ingests one intake request payload.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("intake ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		metrics.ObserveIntakeIngest("error", time.Since(start))
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("intake ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		metrics.ObserveIntakeIngest("error", time.Since(start))
		return
	}

	event, err := req.toEvent()
	if err != nil {
		h.logger.Printf("intake ingest: invalid payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		metrics.ObserveIntakeIngest("error", time.Since(start))
		return
	}

	ctx := eventing.WithEventID(r.Context(), event.EventID)
	ctx = eventing.WithTenantID(ctx, event.TenantID)
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Printf("intake ingest: publish error: %v", err)
		http.Error(w, "publish error", http.StatusInternalServerError)
		metrics.ObserveIntakeIngest("error", time.Since(start))
		return
	}
	metrics.ObserveIntakeIngest("success", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"event_id": event.EventID})
}

type ingestRequest struct {
	RequestID     string   `json:"requestId"`
	TenantID      string   `json:"tenantId"`
	Status        string   `json:"status"`
	Kind          string   `json:"kind"`
	LegacyKind    string   `json:"systemType"`
	SizeMagnitude float64  `json:"sizeMagnitude"`
	SizeUnit      string   `json:"sizeUnit"`
	LegacySize    string   `json:"systemSize"`
	CustomerID    string   `json:"customerId"`
	OrderID       string   `json:"orderId"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Technicians   []string `json:"technicians"`
	MonitoringID  string   `json:"monitoringId"`
	TS            int64    `json:"ts"`
}

func (r ingestRequest) toEvent() (intakeevents.RequestReceived, error) {
	if r.RequestID == "" {
		return intakeevents.RequestReceived{}, errors.New("missing requestId")
	}
	if r.CustomerID == "" {
		return intakeevents.RequestReceived{}, errors.New("missing customerId")
	}
	occurredAt := time.Now().UTC()
	if r.TS > 0 {
		occurredAt = time.UnixMilli(r.TS).UTC()
	}
	return intakeevents.RequestReceived{
		EventID:       eventing.NewEventID(),
		RequestID:     r.RequestID,
		TenantID:      r.TenantID,
		Status:        r.Status,
		Kind:          r.Kind,
		LegacyKind:    r.LegacyKind,
		SizeMagnitude: r.SizeMagnitude,
		SizeUnit:      r.SizeUnit,
		LegacySize:    r.LegacySize,
		CustomerID:    r.CustomerID,
		OrderID:       r.OrderID,
		Address:       r.Address,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		Technicians:   r.Technicians,
		MonitoringID:  r.MonitoringID,
		OccurredAt:    occurredAt,
	}, nil
}
