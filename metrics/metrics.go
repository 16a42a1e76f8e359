package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const aaNamespace = "aa"

// Metrics counts what the entrypoint pipeline does. A nil *Metrics is valid
// and drops every observation, so callers never need to guard.
type Metrics struct {
	opsProcessed *prometheus.CounterVec
	batches      prometheus.Counter
	gasCollected prometheus.Counter
	simulations  prometheus.Counter
	deposits     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		opsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: aaNamespace,
				Name:      "ops_processed_total",
				Help:      "UserOperations processed, partitioned by outcome",
			}, []string{"status"}),

		batches: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: aaNamespace,
				Name:      "batches_total",
				Help:      "handleOps invocations",
			}),

		gasCollected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: aaNamespace,
				Name:      "gas_collected_wei_total",
				Help:      "Cumulative fees credited to batch beneficiaries, in wei",
			}),

		simulations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: aaNamespace,
				Name:      "simulations_total",
				Help:      "simulateValidation invocations",
			}),

		deposits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: aaNamespace,
				Name:      "deposit_calls_total",
				Help:      "depositTo calls through the public API",
			}),
	}
}

func (m *Metrics) IncOpProcessed(status string) {
	if m == nil {
		return
	}
	m.opsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) IncBatch() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

// AddGasCollected records the beneficiary payout. Wei amounts exceed float64
// precision eventually; acceptable for a rate metric.
func (m *Metrics) AddGasCollected(wei float64) {
	if m == nil {
		return
	}
	m.gasCollected.Add(wei)
}

func (m *Metrics) IncSimulation() {
	if m == nil {
		return
	}
	m.simulations.Inc()
}

func (m *Metrics) IncDeposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}
