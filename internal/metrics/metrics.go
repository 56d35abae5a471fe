// Copyright 2025 Certen Protocol
//
// Prometheus-backed metrics registry and HTTP exporter for the consensus
// engine: the four named observability series exposed on /metrics.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConsensusMetrics holds the four stable-named consensus series.
type ConsensusMetrics struct {
	BlockValidationSeconds prometheus.Histogram
	MLAuthSeconds          prometheus.Histogram
	MLCacheHitRatio        prometheus.Gauge
	BlocksRejectedML       prometheus.Counter
}

// Registry owns a Prometheus registry and the consensus metrics registered
// into it.
type Registry struct {
	registry   *prometheus.Registry
	Consensus  ConsensusMetrics
}

// NewRegistry creates a Registry with a fresh prometheus.Registry and
// registers the consensus metrics into it.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	consensus := ConsensusMetrics{
		BlockValidationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consensus_block_validation_seconds",
			Help:    "Time to propose a block (build, base + ML validation, persist, tip update) in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLAuthSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consensus_ml_auth_seconds",
			Help:    "Time spent in ML authenticity checks (V_auth) per verifier call in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		MLCacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_ml_cache_hit_ratio",
			Help: "Ratio of ML cache hits over total ML lookups (0..1); reserved, the core does not yet own a cache",
		}),
		BlocksRejectedML: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_blocks_rejected_ml",
			Help: "Total number of blocks rejected due to ML authenticity failures",
		}),
	}

	reg.MustRegister(
		consensus.BlockValidationSeconds,
		consensus.MLAuthSeconds,
		consensus.MLCacheHitRatio,
		consensus.BlocksRejectedML,
	)

	return &Registry{registry: reg, Consensus: consensus}
}

// Handler returns an http.Handler serving /metrics in Prometheus text
// format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
