package worker

import (
	"crawlorch/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker component.
// It embeds the standard ConfigMetrics for configuration monitoring and
// adds orchestrator-specific metrics for task execution and scheduling.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// TaskRunsTotal counts task runs by terminal status (completed/failed/cancelled).
	TaskRunsTotal *prometheus.CounterVec

	// TaskDurationSeconds measures wall-clock duration of a task run.
	TaskDurationSeconds prometheus.Histogram

	// ArticlesSavedTotal counts articles persisted across all task runs.
	ArticlesSavedTotal prometheus.Counter

	// TaskLastSuccessTimestamp records the Unix timestamp of the last COMPLETED run.
	TaskLastSuccessTimestamp prometheus.Gauge

	// RetryAttemptsTotal counts retry attempts made by the retry coordinator.
	RetryAttemptsTotal prometheus.Counter

	// DueTasksDispatchedTotal counts tasks dispatched by the scheduler poller.
	DueTasksDispatchedTotal prometheus.Counter
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics
// initialized. Metrics are created but registration happens automatically
// via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		TaskRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_task_runs_total",
			Help: "Total number of task runs by terminal status",
		}, []string{"status"}),

		TaskDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_task_duration_seconds",
			Help:    "Duration of a task run in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		ArticlesSavedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_articles_saved_total",
			Help: "Total number of articles saved across all task runs",
		}),

		TaskLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_task_last_success_timestamp",
			Help: "Unix timestamp of the last successfully completed task",
		}),

		RetryAttemptsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_retry_attempts_total",
			Help: "Total number of retry attempts made by the retry coordinator",
		}),

		DueTasksDispatchedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_due_tasks_dispatched_total",
			Help: "Total number of tasks dispatched by the scheduler poller",
		}),
	}
}

// MustRegister is a no-op kept for API compatibility: metrics are
// auto-registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {}

// RecordTaskRun increments the task run counter for the given terminal status.
func (m *WorkerMetrics) RecordTaskRun(status string) {
	m.TaskRunsTotal.WithLabelValues(status).Inc()
}

// RecordTaskDuration observes the duration of a task run in seconds.
func (m *WorkerMetrics) RecordTaskDuration(seconds float64) {
	m.TaskDurationSeconds.Observe(seconds)
}

// RecordArticlesSaved adds count to the articles-saved total.
func (m *WorkerMetrics) RecordArticlesSaved(count int) {
	m.ArticlesSavedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful task completion.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.TaskLastSuccessTimestamp.SetToCurrentTime()
}

// RecordRetryAttempt increments the retry attempt counter.
func (m *WorkerMetrics) RecordRetryAttempt() {
	m.RetryAttemptsTotal.Inc()
}

// RecordDueTaskDispatched increments the due-task dispatch counter.
func (m *WorkerMetrics) RecordDueTaskDispatched() {
	m.DueTasksDispatchedTotal.Inc()
}
