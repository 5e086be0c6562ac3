// Package metrics provides Prometheus metrics for the coachd service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the coachd service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Engagement scoring
	recomputeRuns      *prometheus.CounterVec
	recomputeDuration  prometheus.Histogram
	clientsScored      prometheus.Counter
	clientScoreErrors  prometheus.Counter
	lastRecomputeTotal prometheus.Gauge
	lastRecomputeOK    prometheus.Gauge

	// LLM calls
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	// Triage
	classifications  *prometheus.CounterVec
	clientInferences *prometheus.CounterVec
	actionItems      prometheus.Counter
	syntheses        *prometheus.CounterVec

	// Assistant
	assistantRuns       *prometheus.CounterVec
	assistantIterations prometheus.Histogram
	assistantToolCalls  *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	triageDuplicates   prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coachd",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	latencyBuckets := []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

	m.recomputeRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_recompute_runs_total"),
		Help:        "Engagement recompute runs by outcome",
		ConstLabels: m.customLabels,
	}, []string{"result"})

	m.recomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_recompute_duration_milliseconds"),
		Help:        "Wall time of a full engagement recompute",
		Buckets:     latencyBuckets,
		ConstLabels: m.customLabels,
	})

	m.clientsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_clients_scored_total"),
		Help:        "Clients whose engagement score was written",
		ConstLabels: m.customLabels,
	})

	m.clientScoreErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_client_errors_total"),
		Help:        "Clients skipped during a recompute because of a read or write failure",
		ConstLabels: m.customLabels,
	})

	m.lastRecomputeTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_last_run_clients"),
		Help:        "Clients considered by the last recompute",
		ConstLabels: m.customLabels,
	})

	m.lastRecomputeOK = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("engagement_last_run_updated"),
		Help:        "Clients updated by the last recompute",
		ConstLabels: m.customLabels,
	})

	m.llmRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("llm_requests_total"),
		Help:        "LLM completions by operation, model and status",
		ConstLabels: m.customLabels,
	}, []string{"operation", "model", "status"})

	m.llmLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("llm_latency_milliseconds"),
		Help:        "LLM completion latency in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: m.customLabels,
	}, []string{"operation", "model"})

	m.llmTokens = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("llm_tokens_total"),
		Help:        "LLM tokens by model and direction",
		ConstLabels: m.customLabels,
	}, []string{"model", "direction"})

	m.classifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_classifications_total"),
		Help:        "Update classifications by label and whether the default was used",
		ConstLabels: m.customLabels,
	}, []string{"label", "fallback"})

	m.clientInferences = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_client_inferences_total"),
		Help:        "Client inference outcomes by stage (hashtag, llm, none)",
		ConstLabels: m.customLabels,
	}, []string{"stage"})

	m.actionItems = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_action_items_total"),
		Help:        "Action items extracted from updates",
		ConstLabels: m.customLabels,
	})

	m.syntheses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("daily_syntheses_total"),
		Help:        "Daily synthesis runs by outcome",
		ConstLabels: m.customLabels,
	}, []string{"result"})

	m.assistantRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("assistant_runs_total"),
		Help:        "Assistant conversations by terminal state",
		ConstLabels: m.customLabels,
	}, []string{"outcome"})

	m.assistantIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("assistant_iterations"),
		Help:        "Model turns used per assistant conversation",
		Buckets:     []float64{1, 2, 3, 4, 5, 6, 8, 10},
		ConstLabels: m.customLabels,
	})

	m.assistantToolCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("assistant_tool_calls_total"),
		Help:        "Assistant tool executions by tool and status",
		ConstLabels: m.customLabels,
	}, []string{"tool", "status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_size"),
		Help:        "Current number of queued triage jobs",
		ConstLabels: m.customLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_capacity"),
		Help:        "Maximum number of queued triage jobs",
		ConstLabels: m.customLabels,
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_utilization_ratio"),
		Help:        "Queue size divided by capacity",
		ConstLabels: m.customLabels,
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_enqueued_total"),
		Help:        "Triage jobs accepted by the queue",
		ConstLabels: m.customLabels,
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_dequeued_total"),
		Help:        "Triage jobs handed to workers",
		ConstLabels: m.customLabels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_queue_rejected_total"),
		Help:        "Triage jobs rejected because the queue was full or closed",
		ConstLabels: m.customLabels,
	})

	m.triageDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_duplicates_total"),
		Help:        "Triage requests ignored because the update was already queued",
		ConstLabels: m.customLabels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_worker_count"),
		Help:        "Number of triage workers",
		ConstLabels: m.customLabels,
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_processing_latency_milliseconds"),
		Help:        "Time to triage one update",
		Buckets:     latencyBuckets,
		ConstLabels: m.customLabels,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("triage_worker_errors_total"),
		Help:        "Triage jobs that failed",
		ConstLabels: m.customLabels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and type",
		ConstLabels: m.customLabels,
	}, []string{"component", "error_type"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: m.customLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: m.customLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.customLabels,
	})
}

// Configure applies runtime options to the global manager. Naming and
// registry options only matter to NewManager and are ignored here.
func Configure(opts ...Option) {
	for _, opt := range opts {
		opt(globalManager)
	}
}

// Enabled reports whether the recorders are collecting.
func Enabled() bool {
	return globalManager.enabled.Load()
}

// RefreshInterval is how often gauge updaters should sample.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// active returns the global manager and whether collection is on.
func active() (*Manager, bool) {
	return globalManager, globalManager.enabled.Load()
}

// Engagement Metrics Functions.

// RecordRecompute records a finished recompute run.
func RecordRecompute(result string, updated, total int, durationMs float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.recomputeRuns.WithLabelValues(result).Inc()
	m.recomputeDuration.Observe(durationMs)
	m.lastRecomputeTotal.Set(float64(total))
	m.lastRecomputeOK.Set(float64(updated))
}

// RecordClientScored increments the scored clients counter.
func RecordClientScored() {
	m, ok := active()
	if !ok {
		return
	}
	m.clientsScored.Inc()
}

// RecordClientScoreError increments the skipped clients counter.
func RecordClientScoreError() {
	m, ok := active()
	if !ok {
		return
	}
	m.clientScoreErrors.Inc()
}

// LLM Metrics Functions.

// RecordLLMRequest records one completion call.
func RecordLLMRequest(operation, model, status string, latencyMs float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.llmRequests.WithLabelValues(operation, model, status).Inc()
	m.llmLatency.WithLabelValues(operation, model).Observe(latencyMs)
}

// RecordLLMTokens adds token usage for a model.
func RecordLLMTokens(model string, input, output int64) {
	m, ok := active()
	if !ok {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(input))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(output))
}

// Triage Metrics Functions.

// RecordClassification records a classification outcome.
func RecordClassification(label string, fallback bool) {
	m, ok := active()
	if !ok {
		return
	}
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.classifications.WithLabelValues(label, fb).Inc()
}

// RecordClientInference records which stage resolved (or failed to resolve) a client.
func RecordClientInference(stage string) {
	m, ok := active()
	if !ok {
		return
	}
	m.clientInferences.WithLabelValues(stage).Inc()
}

// RecordActionItems adds extracted action items.
func RecordActionItems(n int) {
	m, ok := active()
	if !ok {
		return
	}
	m.actionItems.Add(float64(n))
}

// RecordSynthesis records a synthesis run outcome.
func RecordSynthesis(result string) {
	m, ok := active()
	if !ok {
		return
	}
	m.syntheses.WithLabelValues(result).Inc()
}

// Assistant Metrics Functions.

// RecordAssistantRun records the terminal state and model turns of a conversation.
func RecordAssistantRun(outcome string, iterations int) {
	m, ok := active()
	if !ok {
		return
	}
	m.assistantRuns.WithLabelValues(outcome).Inc()
	m.assistantIterations.Observe(float64(iterations))
}

// RecordAssistantToolCall records one tool execution.
func RecordAssistantToolCall(tool, status string) {
	m, ok := active()
	if !ok {
		return
	}
	m.assistantToolCalls.WithLabelValues(tool, status).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	m, ok := active()
	if !ok {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	m, ok := active()
	if !ok {
		return
	}
	m.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	m, ok := active()
	if !ok {
		return
	}
	m.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	m, ok := active()
	if !ok {
		return
	}
	m.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	m, ok := active()
	if !ok {
		return
	}
	m.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	m, ok := active()
	if !ok {
		return
	}
	m.queueEnqueueErrors.Inc()
}

// RecordTriageDuplicate increments the duplicate triage request counter.
func RecordTriageDuplicate() {
	m, ok := active()
	if !ok {
		return
	}
	m.triageDuplicates.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	m, ok := active()
	if !ok {
		return
	}
	m.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	m, ok := active()
	if !ok {
		return
	}
	m.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	m, ok := active()
	if !ok {
		return
	}
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	m, ok := active()
	if !ok {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	m, ok := active()
	if !ok {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	m, ok := active()
	if !ok {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	m, ok := active()
	if !ok {
		return
	}
	m.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
