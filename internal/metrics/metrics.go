package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for ledger activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	appendsTotal       *prometheus.CounterVec
	amountTotal        *prometheus.CounterVec
	rejectedTotal      *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	chainLength        prometheus.Gauge
	storageDuration    *prometheus.HistogramVec
	storageErrors      *prometheus.CounterVec
}

// NewMetrics registers all collectors on registry, or on
// prometheus.DefaultRegisterer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		appendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_appends_total",
				Help: "Total number of donation records appended, by donation type",
			},
			[]string{"category"},
		),
		amountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_donated_amount_total",
				Help: "Sum of appended donation amounts, by donation type",
			},
			[]string{"category"},
		),
		rejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_inputs_rejected_total",
				Help: "Total number of donation inputs rejected before reaching the ledger",
			},
			[]string{"source"},
		),
		verificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_verifications_total",
				Help: "Total number of chain verifications, by result",
			},
			[]string{"result"},
		),
		chainLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_chain_length",
				Help: "Number of records in the chain, genesis included",
			},
		),
		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_storage_duration_seconds",
				Help:    "Duration of ledger load and save operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"backend", "operation"},
		),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_storage_errors_total",
				Help: "Total number of failed ledger load and save operations",
			},
			[]string{"backend", "operation"},
		),
	}
}

// knownCategories bounds the category label; donation types come from free
// text, so anything else is counted as "other".
var knownCategories = map[string]bool{
	"Zakat":   true,
	"Sadaqah": true,
	"Waqf":    true,
	"General": true,
}

func categoryLabel(category string) string {
	if knownCategories[category] {
		return category
	}
	return "other"
}

func (m *Metrics) RecordAppend(category string, amount float64, chainLength int) {
	if m == nil {
		return
	}
	label := categoryLabel(category)
	m.appendsTotal.WithLabelValues(label).Inc()
	if amount > 0 {
		m.amountTotal.WithLabelValues(label).Add(amount)
	}
	m.chainLength.Set(float64(chainLength))
}

func (m *Metrics) RecordRejected(source string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordVerification(valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "broken"
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetChainLength(n int) {
	if m == nil {
		return
	}
	m.chainLength.Set(float64(n))
}

func (m *Metrics) ObserveStorage(backend, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(backend, operation).Inc()
	}
}
