package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements every hook interface on top of Prometheus
// collectors.
type Prometheus struct {
	loads            *prometheus.CounterVec
	graphTypes       prometheus.Gauge
	conversions      *prometheus.CounterVec
	convertDuration  *prometheus.HistogramVec
	convertNodes     prometheus.Histogram
	transformErrors  *prometheus.CounterVec
	renders          *prometheus.CounterVec
	renderDuration   *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	cacheWrittenSize *prometheus.HistogramVec
	messages         *prometheus.CounterVec
	staleResults     prometheus.Counter
	activeSessions   prometheus.Gauge
	sessionDuration  prometheus.Histogram
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "graph_type_loads_total",
			Help: "Graph type loads by outcome.",
		}, []string{"outcome"}),
		graphTypes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yamlviz", Name: "graph_types",
			Help: "Graph type versions loaded by the last successful load.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "conversions_total",
			Help: "Document conversions by graph type and outcome.",
		}, []string{"graph_type", "outcome"}),
		convertDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yamlviz", Name: "conversion_duration_seconds",
			Help:    "Time spent converting one document.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"graph_type"}),
		convertNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yamlviz", Name: "conversion_nodes",
			Help:    "Diagram nodes per conversion.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		transformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "transform_failures_total",
			Help: "Transform snippet invocations that threw, timed out or panicked.",
		}, []string{"graph_type"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "renders_total",
			Help: "Artifact renders by format and outcome.",
		}, []string{"format", "outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yamlviz", Name: "render_duration_seconds",
			Help:    "Time spent rendering one artifact.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "cache_lookups_total",
			Help: "Cache lookups by key type and result.",
		}, []string{"key_type", "result"}),
		cacheWrittenSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yamlviz", Name: "cache_entry_bytes",
			Help:    "Size of entries written to the cache.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"key_type"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "session_messages_total",
			Help: "Inbound session messages by type and outcome.",
		}, []string{"type", "outcome"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yamlviz", Name: "session_stale_results_total",
			Help: "Conversion results discarded because a newer edit arrived.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yamlviz", Name: "sessions_active",
			Help: "Connected editing sessions.",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yamlviz", Name: "session_duration_seconds",
			Help:    "Lifetime of editing sessions.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(
		p.loads, p.graphTypes, p.conversions, p.convertDuration, p.convertNodes,
		p.transformErrors, p.renders, p.renderDuration, p.cacheLookups,
		p.cacheWrittenSize, p.messages, p.staleResults, p.activeSessions,
		p.sessionDuration,
	)
	return p
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// OnLoadComplete implements PipelineHooks.
func (p *Prometheus) OnLoadComplete(_ context.Context, types int, _ time.Duration, err error) {
	p.loads.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		p.graphTypes.Set(float64(types))
	}
}

// OnConvertStart implements PipelineHooks.
func (p *Prometheus) OnConvertStart(context.Context, string) {}

// OnConvertComplete implements PipelineHooks.
func (p *Prometheus) OnConvertComplete(_ context.Context, graphType string, nodes int, d time.Duration, err error) {
	p.conversions.WithLabelValues(graphType, outcome(err)).Inc()
	if err == nil {
		p.convertDuration.WithLabelValues(graphType).Observe(d.Seconds())
		p.convertNodes.Observe(float64(nodes))
	}
}

// OnTransformFailure implements PipelineHooks.
func (p *Prometheus) OnTransformFailure(_ context.Context, graphType string) {
	p.transformErrors.WithLabelValues(graphType).Inc()
}

// OnRenderComplete implements PipelineHooks.
func (p *Prometheus) OnRenderComplete(_ context.Context, format string, d time.Duration, err error) {
	p.renders.WithLabelValues(format, outcome(err)).Inc()
	p.renderDuration.WithLabelValues(format).Observe(d.Seconds())
}

// OnCacheHit implements CacheHooks.
func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements CacheHooks.
func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements CacheHooks.
func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheWrittenSize.WithLabelValues(keyType).Observe(float64(size))
}

// OnMessage implements SessionHooks.
func (p *Prometheus) OnMessage(_ context.Context, msgType string, err error) {
	p.messages.WithLabelValues(msgType, outcome(err)).Inc()
}

// OnStaleResult implements SessionHooks.
func (p *Prometheus) OnStaleResult(context.Context) { p.staleResults.Inc() }

// OnConnect implements SessionHooks.
func (p *Prometheus) OnConnect(context.Context) { p.activeSessions.Inc() }

// OnDisconnect implements SessionHooks.
func (p *Prometheus) OnDisconnect(_ context.Context, d time.Duration) {
	p.activeSessions.Dec()
	p.sessionDuration.Observe(d.Seconds())
}

var (
	_ PipelineHooks = (*Prometheus)(nil)
	_ CacheHooks    = (*Prometheus)(nil)
	_ SessionHooks  = (*Prometheus)(nil)
)

// Install makes p the global pipeline, cache and session hooks.
func (p *Prometheus) Install() {
	SetPipelineHooks(p)
	SetCacheHooks(p)
	SetSessionHooks(p)
}
