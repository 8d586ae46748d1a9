package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the pipeline.
type Metrics struct {
	TriggerRequests  *prometheus.CounterVec
	ResponseLatency  prometheus.Histogram
	TextGenLatency   prometheus.Histogram
	SynthesisLatency prometheus.Histogram

	CacheLookups   *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheBytes     prometheus.Gauge
	CacheEntries   prometheus.Gauge

	DispatchOutcomes *prometheus.CounterVec
	DispatchDepth    prometheus.Gauge

	SafetyBlocks  prometheus.Counter
	FallbackTexts *prometheus.CounterVec
	LedgerWrites  *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TriggerRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_requests_total",
			Help:      "Coaching trigger requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ResponseLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_ms",
			Help:      "End-to-end coaching response latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 200, 300, 400, 500, 750, 1000},
		}),
		TextGenLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "textgen_latency_ms",
			Help:      "Text generation latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 200, 300, 500},
		}),
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Speech synthesis latency in milliseconds, cache misses only.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1600, 3200, 10000},
		}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_lookups_total",
			Help:      "Audio cache lookups by result (hit, miss, coalesced, error).",
		}, []string{"result"}),
		CacheEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_evictions_total",
			Help:      "Audio cache evictions by reason (expired, lru).",
		}, []string{"reason"}),
		CacheBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_cache_bytes",
			Help:      "Bytes currently held by the audio cache.",
		}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_cache_entries",
			Help:      "Entries currently held by the audio cache.",
		}),
		DispatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_outcomes_total",
			Help:      "Synthesis dispatch outcomes by tier and result.",
		}, []string{"tier", "result"}),
		DispatchDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Jobs currently waiting in the synthesis dispatch queue.",
		}),
		SafetyBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_blocks_total",
			Help:      "Responses replaced by a safe fallback after a blocklist match.",
		}),
		FallbackTexts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_texts_total",
			Help:      "Predefined fallback texts served, by cause (textgen_error, textgen_timeout, blocked).",
		}, []string{"cause"}),
		LedgerWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Response ledger writes by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveResponseLatency(d time.Duration) {
	m.ResponseLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTextGenLatency(d time.Duration) {
	m.TextGenLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveSynthesisLatency(d time.Duration) {
	m.SynthesisLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
