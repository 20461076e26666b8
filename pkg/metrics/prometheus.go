package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
)

// PrometheusMetricsWriter exposes tile request outcomes and latency
// via a prometheus registry; pair it with a promhttp handler on the
// metrics listener.
type PrometheusMetricsWriter struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	size     prometheus.Histogram
	cacheHit prometheus.Counter
}

func NewPrometheusMetricsWriter(reg prometheus.Registerer) *PrometheusMetricsWriter {
	pmw := &PrometheusMetricsWriter{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terrain_tile_requests_total",
			Help: "Tile requests by response outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "terrain_tile_request_duration_seconds",
			Help:    "Total tile request handling time.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		size: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "terrain_tile_response_bytes",
			Help:    "Size of served tile payloads.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrain_tile_cache_hits_total",
			Help: "Tile requests answered from the relay cache.",
		}),
	}

	reg.MustRegister(pmw.requests, pmw.duration, pmw.size, pmw.cacheHit)
	return pmw
}

func (pmw *PrometheusMetricsWriter) WriteTileState(reqState *state.RequestState) {
	pmw.requests.WithLabelValues(reqState.ResponseState.String()).Inc()
	pmw.duration.Observe(reqState.Duration.Total.Seconds())
	if reqState.ResponseSize > 0 {
		pmw.size.Observe(float64(reqState.ResponseSize))
	}
	if reqState.CacheHit {
		pmw.cacheHit.Inc()
	}
}
