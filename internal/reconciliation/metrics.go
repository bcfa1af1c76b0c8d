package reconciliation

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for reconciliation mutations.
type Metrics struct {
	numberConflicts prometheus.Counter
	mutations       *prometheus.CounterVec
	summaryCache    *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers the collectors. A nil registerer uses the default
// Prometheus registerer once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		numberConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_order_number_conflicts_total",
			Help: "Order number inserts rejected by the unique index and regenerated.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_payment_mutations_total",
			Help: "Payment mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		summaryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_finance_summary_cache_total",
			Help: "Finance summary lookups by cache result.",
		}, []string{"result"}),
	}
	registerer.MustRegister(m.numberConflicts, m.mutations, m.summaryCache)
	return m
}

// NumberConflict counts one regenerated order number.
func (m *Metrics) NumberConflict() {
	if m == nil {
		return
	}
	m.numberConflicts.Inc()
}

// Mutation records the outcome of one payment mutation.
func (m *Metrics) Mutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, string(Classify(err))).Inc()
}

// SummaryLookup records a summary cache hit or miss.
func (m *Metrics) SummaryLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.summaryCache.WithLabelValues(result).Inc()
}
