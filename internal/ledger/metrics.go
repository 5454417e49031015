package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the ledger's Prometheus instruments.
type Metrics struct {
	blocksMined    prometheus.Counter
	miningDuration prometheus.Histogram
	miningAttempts prometheus.Histogram
	chainBlocks    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksMined: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "surakshanet",
				Subsystem: "ledger",
				Name:      "blocks_mined_total",
				Help:      "Blocks successfully mined and appended",
			},
		),
		miningDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "surakshanet",
				Subsystem: "ledger",
				Name:      "mining_duration_seconds",
				Help:      "Wall-clock time spent mining a block",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		miningAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "surakshanet",
				Subsystem: "ledger",
				Name:      "mining_attempts",
				Help:      "Nonce values tried before a block satisfied the difficulty target",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
			},
		),
		chainBlocks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "surakshanet",
				Subsystem: "ledger",
				Name:      "chain_blocks",
				Help:      "Current chain length including genesis",
			},
		),
	}
	reg.MustRegister(m.blocksMined, m.miningDuration, m.miningAttempts, m.chainBlocks)
	return m
}

func (m *Metrics) blockMined(d time.Duration, attempts int) {
	if m != nil {
		m.blocksMined.Inc()
		m.miningDuration.Observe(d.Seconds())
		m.miningAttempts.Observe(float64(attempts))
	}
}

func (m *Metrics) setChainLength(n int) {
	if m != nil {
		m.chainBlocks.Set(float64(n))
	}
}
