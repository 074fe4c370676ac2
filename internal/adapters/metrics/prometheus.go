package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry      *prometheus.Registry
	allocations   *prometheus.CounterVec
	holds         *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	batchesClosed prometheus.Counter
	payoutRecords prometheus.Histogram
	batchesSettle prometheus.Counter
	openBatches   prometheus.Gauge
	openStores    prometheus.Gauge
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "micronote"
	}
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Micronote allocations against funding sources by outcome.",
		}, []string{"outcome"}),
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_total",
			Help:      "Hold requests by acceptance.",
		}, []string{"accepted"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Hold settlements and claims, split by whether the note was finalized.",
		}, []string{"final"}),
		batchesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_closed_total",
			Help:      "Batches closed.",
		}),
		payoutRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_payout_records",
			Help:      "Payout records written per closed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		batchesSettle: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_settled_total",
			Help:      "Batches settled to the main ledger.",
		}),
		openBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_batches",
			Help:      "Micronote batches currently accepting notes.",
		}),
		openStores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_batch_stores",
			Help:      "Isolated batch stores with an open connection pool.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.allocations, m.holds, m.settlements,
		m.batchesClosed, m.payoutRecords, m.batchesSettle,
		m.openBatches, m.openStores,
	)
	return m
}

func (m *Prometheus) ObserveAllocation(outcome string) { m.allocations.WithLabelValues(outcome).Inc() }
func (m *Prometheus) ObserveHold(accepted bool)        { m.holds.WithLabelValues(strconv.FormatBool(accepted)).Inc() }
func (m *Prometheus) ObserveSettlement(final bool)     { m.settlements.WithLabelValues(strconv.FormatBool(final)).Inc() }
func (m *Prometheus) ObserveBatchSettled()             { m.batchesSettle.Inc() }
func (m *Prometheus) SetOpenBatches(n int)             { m.openBatches.Set(float64(n)) }
func (m *Prometheus) SetOpenStores(n int)              { m.openStores.Set(float64(n)) }

func (m *Prometheus) ObserveBatchClosed(payoutRecords int) {
	m.batchesClosed.Inc()
	m.payoutRecords.Observe(float64(payoutRecords))
}

func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
