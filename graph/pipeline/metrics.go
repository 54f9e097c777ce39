package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusHandler collects execution metrics from the event stream.
//
// Metrics exposed (all namespaced "weave_"):
//
//  1. events_total (counter): lifecycle events dispatched, labeled by kind.
//  2. inflight_nodes (gauge): nodes currently executing. Rises on
//     NodeExecutionStarting, falls on completed/failed.
//  3. node_latency_ms (histogram): node execution duration, labeled by node
//     name and status (success/error). Buckets 1ms-10s.
//  4. tool_calls_total (counter): tool invocations labeled by tool name and
//     outcome (success/error/invalid).
//  5. llm_calls_total (counter): model calls labeled by model.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := pipeline.NewPrometheusHandler(registry)
//	metrics.Attach(p)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: latency bookkeeping is mutex-protected; prometheus collectors
// are safe for concurrent use.
type PrometheusHandler struct {
	events      *prometheus.CounterVec
	inflight    prometheus.Gauge
	nodeLatency *prometheus.HistogramVec
	toolCalls   *prometheus.CounterVec
	llmCalls    *prometheus.CounterVec

	mu     sync.Mutex
	starts map[string]time.Time // runID+"\x00"+nodeName -> start time
}

const metricsOwner OwnerKey = "pipeline.metrics"

// NewPrometheusHandler creates and registers all collectors with the given
// registry. A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusHandler(registry prometheus.Registerer) *PrometheusHandler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusHandler{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "events_total",
			Help:      "Lifecycle events dispatched through the pipeline",
		}, []string{"kind"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "weave",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weave",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_name", "status"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by outcome",
		}, []string{"tool_name", "status"}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weave",
			Name:      "llm_calls_total",
			Help:      "Model calls by model name",
		}, []string{"model"}),
		starts: make(map[string]time.Time),
	}
}

// Attach installs the handler for every event kind.
func (m *PrometheusHandler) Attach(p *Pipeline) {
	p.InstallBroadcast(metricsOwner, m.Handle)
}

// Handle updates the collectors for one event. Never returns an error:
// metrics must not abort a run.
func (m *PrometheusHandler) Handle(_ context.Context, event Event) error {
	m.events.WithLabelValues(string(event.Kind())).Inc()

	switch e := event.(type) {
	case NodeExecutionStarting:
		m.inflight.Inc()
		m.markStart(e.RunID, e.NodeName, e.Timestamp)
	case NodeExecutionCompleted:
		m.inflight.Dec()
		m.observeLatency(e.RunID, e.NodeName, e.Timestamp, "success")
	case NodeExecutionFailed:
		m.inflight.Dec()
		m.observeLatency(e.RunID, e.NodeName, e.Timestamp, "error")
	case ToolCallCompleted:
		m.toolCalls.WithLabelValues(e.ToolName, "success").Inc()
	case ToolCallFailed:
		m.toolCalls.WithLabelValues(e.ToolName, "error").Inc()
	case ToolValidationFailed:
		m.toolCalls.WithLabelValues(e.ToolName, "invalid").Inc()
	case LLMCallCompleted:
		m.llmCalls.WithLabelValues(e.Model).Inc()
	}
	return nil
}

func (m *PrometheusHandler) markStart(runID, nodeName string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts[runID+"\x00"+nodeName] = at
}

func (m *PrometheusHandler) observeLatency(runID, nodeName string, end time.Time, status string) {
	key := runID + "\x00" + nodeName
	m.mu.Lock()
	start, ok := m.starts[key]
	if ok {
		delete(m.starts, key)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.nodeLatency.WithLabelValues(nodeName, status).Observe(float64(end.Sub(start).Milliseconds()))
}
