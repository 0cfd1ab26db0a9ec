package node

import (
	"github.com/prometheus/client_golang/prometheus"

	"curecoin.dev/node/consensus"
)

// Metrics are the chain manager's Prometheus collectors.
type Metrics struct {
	height       prometheus.Gauge
	tips         prometheus.Gauge
	queued       prometheus.Gauge
	accounts     prometheus.Gauge
	accepted     *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	reorgs       prometheus.Counter
	reorgDepth   prometheus.Histogram
	replayPasses prometheus.Histogram
	halted       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "height",
			Help:      "Length of the canonical chain",
		}),
		tips: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "tips",
			Help:      "Number of tracked chain tips",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "queued_blocks",
			Help:      "Blocks waiting for their parent",
		}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curecoin",
			Subsystem: "ledger",
			Name:      "accounts",
			Help:      "Non-empty ledger accounts",
		}),
		accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "curecoin",
				Subsystem: "chain",
				Name:      "blocks_accepted_total",
				Help:      "Accepted blocks by decision",
			},
			[]string{"decision"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "curecoin",
				Subsystem: "chain",
				Name:      "blocks_rejected_total",
				Help:      "Rejected blocks by error code",
			},
			[]string{"code"},
		),
		reorgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "reorgs_total",
			Help:      "Canonical chain switches",
		}),
		reorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "reorg_depth_blocks",
			Help:      "Blocks reversed per reorganization",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		replayPasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "curecoin",
			Subsystem: "ledger",
			Name:      "replay_passes",
			Help:      "Passes needed to apply a block's transactions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curecoin",
			Subsystem: "chain",
			Name:      "halted",
			Help:      "1 once block acceptance halted on an unresolvable ledger",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.height, m.tips, m.queued, m.accounts, m.accepted, m.rejected,
			m.reorgs, m.reorgDepth, m.replayPasses, m.halted)
	}
	return m
}

func (m *Metrics) observeAccepted(d Decision) {
	m.accepted.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) observeRejected(err error) {
	code := string(consensus.CodeOf(err))
	if code == "" {
		code = "OTHER"
	}
	m.rejected.WithLabelValues(code).Inc()
}

func (m *Metrics) observeReorg(depth int) {
	m.reorgs.Inc()
	m.reorgDepth.Observe(float64(depth))
}
