package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"solarops-cloud/internal/audit"
	"solarops-cloud/internal/auth"
	checklistapp "solarops-cloud/internal/checklists/application"
	checklistevents "solarops-cloud/internal/checklists/application/events"
	checklistrepo "solarops-cloud/internal/checklists/infrastructure/postgres"
	checklistinterfaces "solarops-cloud/internal/checklists/interfaces"
	"solarops-cloud/internal/eventing"
	"solarops-cloud/internal/eventing/eventbus"
	eventingrepo "solarops-cloud/internal/eventing/infrastructure/postgres"
	installapp "solarops-cloud/internal/installations/application"
	installevents "solarops-cloud/internal/installations/application/events"
	installrepo "solarops-cloud/internal/installations/infrastructure/postgres"
	installinterfaces "solarops-cloud/internal/installations/interfaces"
	intakeapp "solarops-cloud/internal/intake/application"
	intakeevents "solarops-cloud/internal/intake/application/events"
	intakeinterfaces "solarops-cloud/internal/intake/interfaces"
	intakehttp "solarops-cloud/internal/intake/interfaces/http"
	"solarops-cloud/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	recordChecker := auth.NewRecordChecker(db)
	auditRepo := audit.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(intakeevents.RequestReceived{})
	registry.Register(installevents.RecordCreated{})
	registry.Register(installevents.RecordStatusChanged{})
	registry.Register(checklistevents.TrackerItemUpdated{})
	registry.Register(checklistevents.TrackerCompleted{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, baseBus)

	recordRepo := installrepo.NewRecordRepository(db)
	templateRepo := checklistrepo.NewTemplateRepository(db)
	trackerRepo := checklistrepo.NewTrackerRepository(db)

	templateService, err := checklistapp.NewTemplateService(templateRepo, systemClock{})
	if err != nil {
		logger.Fatalf("template service error: %v", err)
	}
	trackerService, err := checklistapp.NewTrackerService(trackerRepo, templateRepo, publisher, systemClock{})
	if err != nil {
		logger.Fatalf("tracker service error: %v", err)
	}
	gate, err := installapp.NewCommissioningGate(trackerRepo)
	if err != nil {
		logger.Fatalf("commissioning gate error: %v", err)
	}
	recordService, err := installapp.NewService(recordRepo, gate, publisher, systemClock{})
	if err != nil {
		logger.Fatalf("record service error: %v", err)
	}

	mapping, err := intakeapp.LoadMapping(cfg.IntakeMappingPath)
	if err != nil {
		logger.Fatalf("intake mapping error: %v", err)
	}
	synthesizer, err := intakeapp.NewSynthesizer(recordService, templateService, trackerService, mapping, logger)
	if err != nil {
		logger.Fatalf("synthesizer error: %v", err)
	}
	requestConsumer, err := intakeinterfaces.NewRequestReceivedConsumer(synthesizer)
	if err != nil {
		logger.Fatalf("request consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[intakeevents.RequestReceived](), "intake.synthesize", func(ctx context.Context, event any) error {
		evt, ok := event.(intakeevents.RequestReceived)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return requestConsumer.Consume(ctx, evt)
	}, processedStore)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[installevents.RecordStatusChanged](), "installations.log", func(ctx context.Context, event any) error {
		evt, ok := event.(installevents.RecordStatusChanged)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("record status changed: record=%s %s -> %s", evt.RecordID, evt.FromStatus, evt.ToStatus)
		return nil
	}, processedStore)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[checklistevents.TrackerCompleted](), "checklists.log", func(ctx context.Context, event any) error {
		evt, ok := event.(checklistevents.TrackerCompleted)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("tracker completed: record=%s tracker=%s", evt.RecordID, evt.TrackerID)
		return nil
	}, processedStore)

	ingestHandler, err := intakehttp.NewIngestHandler(publisher, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	recordHandler, err := installinterfaces.NewRecordHandler(recordService, trackerService, recordChecker, auditRepo)
	if err != nil {
		logger.Fatalf("record handler error: %v", err)
	}
	checklistHandler, err := checklistinterfaces.NewChecklistHandler(templateService, trackerService, recordChecker, auditRepo)
	if err != nil {
		logger.Fatalf("checklist handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	intakeAuth := auth.NewIntakeAuthMiddleware([]byte(cfg.IntakeSecret), time.Duration(cfg.IntakeSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/crm/requests", intakeAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/installations", recordHandler)
	mux.Handle("/api/v1/installations/", recordHandler)
	mux.Handle("/api/v1/checklists/templates", checklistHandler)
	mux.Handle("/api/v1/checklists/templates/", checklistHandler)
	mux.Handle("/api/v1/checklists/trackers", checklistHandler)
	mux.Handle("/api/v1/checklists/trackers/", checklistHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	TenantID          string
	JWTSecret         string
	IntakeSecret      string
	IntakeSkewSeconds int
	IntakeMappingPath string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:          getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IntakeSecret:      getenvDefault("INTAKE_HMAC_SECRET", ""),
		IntakeSkewSeconds: getenvIntDefault("INTAKE_MAX_SKEW_SECONDS", 300),
		IntakeMappingPath: getenvDefault("INTAKE_MAPPING_CONFIG", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
