package metrics

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
)

const metricPrefix = "water_alerting_"

var (
	// ReadingsEvaluated counts readings consumed and evaluated
	ReadingsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "readings_evaluated_total",
		Help: "Readings consumed and evaluated against thresholds",
	})

	// ReadingsRejected counts readings that failed validation
	ReadingsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "readings_rejected_total",
		Help: "Readings rejected before evaluation",
	})

	// ViolationsDetected counts threshold violations by parameter and severity
	ViolationsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "violations_detected_total",
		Help: "Threshold violations detected",
	}, []string{"parameter", "severity"})

	// AlertOutcomes counts lifecycle dispositions of violations
	AlertOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "alert_outcomes_total",
		Help: "Violation dispositions (created, rearmed, suppressed, escalated)",
	}, []string{"outcome"})

	// ViolationFailures counts violations that could not be handled
	ViolationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "violation_failures_total",
		Help: "Violations whose lifecycle handling failed",
	})
)

// Register registers the pipeline metrics, plus an active-alerts gauge
// backed by the database when db is non-nil.
func Register(db *sql.DB) {
	prometheus.MustRegister(
		ReadingsEvaluated,
		ReadingsRejected,
		ViolationsDetected,
		AlertOutcomes,
		ViolationFailures,
	)

	if db != nil {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alerts",
				Help: "Alerts currently in ACTIVE status",
			},
			func() float64 {
				return queryCount(db, "SELECT COUNT(*) FROM alerts WHERE status = 'ACTIVE'")
			},
		))
	}
}

// RegisterConsumerLag exposes how far the readings consumer trails the
// head of its topic.
func RegisterConsumerLag(stats func() kafka.ReaderStats) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "consumer_lag",
			Help: "Messages between the readings consumer and the topic head",
		},
		func() float64 {
			return float64(stats().Lag)
		},
	))
}

// Serve exposes /metrics on addr in a background goroutine
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}

func queryCount(db *sql.DB, query string) float64 {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		log.Printf("Metrics query failed: %v", err)
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
