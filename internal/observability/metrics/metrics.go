package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "solarops_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported result labels for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	intakeRequests *prometheus.CounterVec
	intakeLatency  *prometheus.HistogramVec

	synthesizeTotal *prometheus.CounterVec

	statusTransitions *prometheus.CounterVec
	gateDecisions     *prometheus.CounterVec

	trackerItemUpdates *prometheus.CounterVec

	recordExportTotal   *prometheus.CounterVec
	recordExportLatency *prometheus.HistogramVec

	consumerLag *prometheus.GaugeVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		intakeRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "intake_requests_total",
				Help: "Total intake ingest requests by result",
			},
			[]string{"result"},
		)
		intakeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "intake_latency_seconds",
				Help:    "Intake ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		synthesizeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "synthesize_total",
				Help: "Total request-to-record synthesis runs by outcome",
			},
			[]string{"outcome"},
		)

		statusTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_transitions_total",
				Help: "Total installation status transition attempts by edge and result",
			},
			[]string{"from", "to", "result"},
		)
		gateDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gate_decisions_total",
				Help: "Total commissioning gate decisions by result",
			},
			[]string{"result"},
		)

		trackerItemUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tracker_item_updates_total",
				Help: "Total checklist item evidence submissions by completion state",
			},
			[]string{"completed"},
		)

		recordExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_export_total",
				Help: "Total installation record exports by format and result",
			},
			[]string{"format", "result"},
		)
		recordExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "record_export_latency_seconds",
				Help:    "Installation record export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			intakeRequests,
			intakeLatency,
			synthesizeTotal,
			statusTransitions,
			gateDecisions,
			trackerItemUpdates,
			recordExportTotal,
			recordExportLatency,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIntakeIngest records intake ingest duration and result.
func ObserveIntakeIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if intakeRequests != nil {
		intakeRequests.WithLabelValues(result).Inc()
	}
	if intakeLatency != nil {
		intakeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSynthesize increments synthesis outcome counter.
func IncSynthesize(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if synthesizeTotal != nil {
		synthesizeTotal.WithLabelValues(outcome).Inc()
	}
}

// IncStatusTransition increments the status transition counter for an edge.
func IncStatusTransition(from, to, result string) {
	if statusTransitions != nil {
		statusTransitions.WithLabelValues(from, to, result).Inc()
	}
}

// IncGateDecision increments the commissioning gate decision counter.
func IncGateDecision(result string) {
	if gateDecisions != nil {
		gateDecisions.WithLabelValues(result).Inc()
	}
}

// IncTrackerItemUpdate increments the checklist evidence counter.
func IncTrackerItemUpdate(completed bool) {
	label := "false"
	if completed {
		label = "true"
	}
	if trackerItemUpdates != nil {
		trackerItemUpdates.WithLabelValues(label).Inc()
	}
}

// ObserveRecordExport records export duration by format and result.
func ObserveRecordExport(format, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if recordExportTotal != nil {
		recordExportTotal.WithLabelValues(format, result).Inc()
	}
	if recordExportLatency != nil {
		recordExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}
