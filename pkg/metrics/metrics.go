package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 远程文档存储调用延迟（秒）
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Remote document store call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "status"},
	)

	// 远程写失败计数
	StoreWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_failures_total",
			Help: "Remote aggregate writes that failed, by error kind",
		},
		[]string{"kind"}, // kind: permission, transient, not_found
	)

	// 本地回退写入计数
	FallbackWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_writes_total",
			Help: "Fields written to the local fallback store",
		},
		[]string{"field", "status"},
	)

	// 同步循环写入计数
	SyncWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_writes_total",
			Help: "Persistence sync loop write attempts",
		},
		[]string{"status"}, // status: success, failed
	)

	// 同步循环关闭时未写出的字段
	SyncDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_dropped_fields_total",
			Help: "Fields still pending when a sync loop closed",
		},
		[]string{"field"},
	)

	// 提醒触发计数
	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_fired_total",
			Help: "Reminders marked as shown by the scanner",
		},
		[]string{"source", "notified"}, // source: task, habit
	)

	// 成就触发计数
	AchievementsUnlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievement events emitted",
		},
		[]string{"kind"},
	)

	// 活跃会话数
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "User sessions currently held in memory",
		},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "PostgreSQL queries slower than the configured threshold",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

// RecordStoreOperation 记录远程存储调用延迟
func RecordStoreOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	StoreOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// IncrementStoreWriteFailure 增加远程写失败计数
func IncrementStoreWriteFailure(kind string) {
	StoreWriteFailures.WithLabelValues(kind).Inc()
}

// IncrementFallbackWrite 增加回退写入计数
func IncrementFallbackWrite(field string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	FallbackWrites.WithLabelValues(field, status).Inc()
}

// IncrementSyncWrite 增加同步写入计数
func IncrementSyncWrite(err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	SyncWrites.WithLabelValues(status).Inc()
}

// IncrementSyncDropped 记录关闭时未写出的字段
func IncrementSyncDropped(field string) {
	SyncDropped.WithLabelValues(field).Inc()
}

// IncrementReminderFired 增加提醒触发计数
func IncrementReminderFired(source string, notified bool) {
	n := "false"
	if notified {
		n = "true"
	}
	RemindersFired.WithLabelValues(source, n).Inc()
}

// IncrementAchievement 增加成就计数
func IncrementAchievement(kind string) {
	AchievementsUnlocked.WithLabelValues(kind).Inc()
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
