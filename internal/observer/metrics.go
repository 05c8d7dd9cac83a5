package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard event metrics
	eventProcessingLabels = []string{"event_type", "workspace_id", "consumer_type"}
	// Labels for tracking specific processing actions
	eventActionLabels = []string{"event_type", "workspace_id", "consumer_type", "action", "error_type"}

	// Standard Event Counters
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_events_received_total",
			Help: "Total number of workspace events received, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_events_processed_total",
			Help: "Total number of workspace events successfully processed and acknowledged.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_events_failed_total",
			Help: "Total number of workspace events that failed processing.",
		},
		eventProcessingLabels,
	)

	// Histogram for Processing Duration
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_engine_event_processing_duration_seconds",
			Help:    "Histogram of event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	// Counter for Specific Actions
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_event_processing_actions_total",
			Help: "Total count of specific actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "workspace_id", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_engine_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// --- Alert Scanner Metrics ---
var (
	alertLabels = []string{"workspace_id", "alert_type"}
	scanLabels  = []string{"workspace_id", "status"}

	alertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_alerts_created_total",
			Help: "Total number of alerts created by the scanner, labeled by alert type.",
		},
		alertLabels,
	)
	alertsDedupedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_alerts_deduped_total",
			Help: "Total number of alert inserts suppressed by the open-alert dedup index.",
		},
		alertLabels,
	)
	scanDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_engine_alert_scan_duration_seconds",
			Help:    "Histogram of full alert scan durations.",
			Buckets: prometheus.DefBuckets,
		},
		scanLabels,
	)
)

// --- Notification Metrics ---
var (
	notificationLabels = []string{"workspace_id", "channel", "result"}

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_engine_notifications_total",
			Help: "Total number of notification dispatch attempts, labeled by channel and result.",
		},
		notificationLabels,
	)
	notifierQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automation_engine_notifier_queue_length",
		Help: "Approximate number of tasks waiting in the notifier worker pool queue.",
	})
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes and registers the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	if !enabled {
		metricsEnabled = false
		return
	}

	metricsEnabled = true

	// Metrics are already auto-registered via promauto.
	Metrics = &metricsStore{}
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, workspaceID, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType, sanitizeWorkspace(workspaceID), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, workspaceID, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType, sanitizeWorkspace(workspaceID), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, workspaceID, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType, sanitizeWorkspace(workspaceID), consumerType).Inc()
}

// sanitizeWorkspace ensures the workspace label is valid or returns a default value.
func sanitizeWorkspace(workspaceID string) string {
	if workspaceID == "" {
		return "unknown"
	}
	return workspaceID
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, workspaceID, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(eventType, sanitizeWorkspace(workspaceID), consumerType).Observe(duration.Seconds())
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, workspaceID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeWorkspace(workspaceID), status).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, workspaceID, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	sanitizedErrorType := SanitizeErrorType(errorType)
	EventProcessingActionsTotal.WithLabelValues(eventType, sanitizeWorkspace(workspaceID), consumerType, action, sanitizedErrorType).Inc()
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Alert Scanner Metric Helpers ---

// IncAlertsCreated increments the counter for alerts created by the scanner.
func IncAlertsCreated(workspaceID, alertType string) {
	if !metricsEnabled {
		return
	}
	alertsCreatedTotal.WithLabelValues(sanitizeWorkspace(workspaceID), alertType).Inc()
}

// IncAlertsDeduped increments the counter for dedup-suppressed alert inserts.
func IncAlertsDeduped(workspaceID, alertType string) {
	if !metricsEnabled {
		return
	}
	alertsDedupedTotal.WithLabelValues(sanitizeWorkspace(workspaceID), alertType).Inc()
}

// ObserveScanDuration records the duration of a full alert scan.
func ObserveScanDuration(workspaceID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	scanDurationSeconds.WithLabelValues(sanitizeWorkspace(workspaceID), status).Observe(duration.Seconds())
}

// --- Notification Metric Helpers ---

// IncNotification counts a notification dispatch attempt by channel and result.
func IncNotification(workspaceID, channel, result string) {
	if !metricsEnabled {
		return
	}
	notificationsTotal.WithLabelValues(sanitizeWorkspace(workspaceID), channel, result).Inc()
}

// SetNotifierQueueLength sets the current notifier queue length.
func SetNotifierQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	notifierQueueLength.Set(float64(length))
}
