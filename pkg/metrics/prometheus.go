// Package metrics provides Prometheus metrics for the scorebot service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Inbound updates
	updatesReceived  prometheus.Counter
	updatesDuplicate prometheus.Counter
	updatesIgnored   prometheus.Counter
	commands         *prometheus.CounterVec

	// Scorekeeping
	deltasApplied  *prometheus.CounterVec
	unknownPlayers prometheus.Counter
	scoreResets    prometheus.Counter
	chatsTracked   prometheus.Gauge

	// Reply delivery
	repliesEnqueued prometheus.Counter
	repliesSent     prometheus.Counter
	repliesFailed   prometheus.Counter
	repliesDropped  *prometheus.CounterVec
	replyRetries    prometheus.Counter
	replyLatency    prometheus.Histogram
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	workerCount     prometheus.Gauge

	// Telegram API
	telegramCalls *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorebot",
		subsystem:        "bot",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.updatesReceived = m.counter("updates_received_total", "Total number of webhook updates received")
	m.updatesDuplicate = m.counter("updates_duplicate_total", "Total number of redelivered updates skipped")
	m.updatesIgnored = m.counter("updates_ignored_total", "Total number of updates with nothing to score")
	m.commands = m.counterVec("commands_total", "Total number of bot commands handled", "command")

	m.deltasApplied = m.counterVec("deltas_applied_total", "Total number of score deltas applied", "player")
	m.unknownPlayers = m.counter("unknown_players_total", "Total number of deltas naming a player outside the roster")
	m.scoreResets = m.counter("score_resets_total", "Total number of chat score resets")
	m.chatsTracked = m.gauge("chats_tracked", "Number of chats with a score record")

	m.repliesEnqueued = m.counter("replies_enqueued_total", "Total number of replies queued for delivery")
	m.repliesSent = m.counter("replies_sent_total", "Total number of replies delivered")
	m.repliesFailed = m.counter("replies_failed_total", "Total number of failed delivery attempts")
	m.repliesDropped = m.counterVec("replies_dropped_total", "Total number of replies dropped", "reason")
	m.replyRetries = m.counter("reply_retries_total", "Total number of delivery retries")
	m.replyLatency = m.histogram("reply_latency_milliseconds", "Reply delivery latency in milliseconds")
	m.queueSize = m.gauge("queue_size", "Current number of queued replies")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued replies")
	m.workerCount = m.gauge("worker_count", "Number of reply delivery workers")

	m.telegramCalls = m.counterVec("telegram_calls_total", "Total number of Telegram Bot API calls", "method", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Total number of errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of running goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// RecordUpdateReceived counts an inbound webhook update.
func RecordUpdateReceived() { globalManager.updatesReceived.Inc() }

// RecordUpdateDuplicate counts a redelivered update.
func RecordUpdateDuplicate() { globalManager.updatesDuplicate.Inc() }

// RecordUpdateIgnored counts an update that produced no action.
func RecordUpdateIgnored() { globalManager.updatesIgnored.Inc() }

// RecordCommand counts a handled bot command.
func RecordCommand(command string) { globalManager.commands.WithLabelValues(command).Inc() }

// RecordDeltaApplied counts a delta applied to player.
func RecordDeltaApplied(player string) { globalManager.deltasApplied.WithLabelValues(player).Inc() }

// RecordUnknownPlayer counts a delta for a name outside the roster.
func RecordUnknownPlayer() { globalManager.unknownPlayers.Inc() }

// RecordScoreReset counts a chat reset.
func RecordScoreReset() { globalManager.scoreResets.Inc() }

// UpdateChatsTracked sets the number of chats in the store.
func UpdateChatsTracked(count int) { globalManager.chatsTracked.Set(float64(count)) }

// RecordReplyEnqueued counts a reply accepted by the queue.
func RecordReplyEnqueued() { globalManager.repliesEnqueued.Inc() }

// RecordReplySent counts a delivered reply and its latency.
func RecordReplySent(latencyMs float64) {
	globalManager.repliesSent.Inc()
	globalManager.replyLatency.Observe(latencyMs)
}

// RecordReplyFailed counts a failed delivery attempt.
func RecordReplyFailed() { globalManager.repliesFailed.Inc() }

// RecordReplyRetry counts a delivery retry.
func RecordReplyRetry() { globalManager.replyRetries.Inc() }

// RecordReplyDropped counts a reply given up on, by reason.
func RecordReplyDropped(reason string) { globalManager.repliesDropped.WithLabelValues(reason).Inc() }

// UpdateQueueSize sets the current reply queue length.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the reply queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateWorkerCount sets the number of delivery workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordTelegramCall counts a Bot API call by method and outcome ("ok" or "error").
func RecordTelegramCall(method, outcome string) {
	globalManager.telegramCalls.WithLabelValues(method, outcome).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
