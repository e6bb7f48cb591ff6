// Package metrics 提供 airbnb-sync 服务的 Prometheus 监控指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "airbnb_sync"

// 同步运行指标
var (
	// SyncRunsTotal 账户同步运行总数
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "账户同步运行总数",
		},
		[]string{"trigger", "status"}, // trigger: scheduled/manual/startup, status: success/partial/failed/skipped
	)

	// SyncRunDuration 账户同步耗时
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "账户同步耗时(秒)",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"trigger"},
	)

	// ListingSyncsTotal 房源同步结果总数
	ListingSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_syncs_total",
			Help:      "房源同步结果总数",
		},
		[]string{"status"}, // status: ok/failed
	)

	// RowsUpsertedTotal 指标行写入总数
	RowsUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "指标宽表行写入总数",
		},
		[]string{"table"}, // table: chart_query/chart_summary/list_of_metrics
	)

	// RunningSyncsGauge 当前运行中的同步数
	RunningSyncsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_syncs_total",
			Help:      "当前运行中的账户同步数",
		},
	)

	// LastSyncTime 账户最后同步完成时间
	LastSyncTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp",
			Help:      "账户最后同步完成时间戳",
		},
		[]string{"account_id"},
	)
)

// 上游 API 指标
var (
	// UpstreamRequestsTotal Airbnb API 请求总数
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Airbnb API 请求总数",
		},
		[]string{"query", "status"}, // query: ChartQuery/ListOfMetricsQuery/ListingsSectionQuery
	)

	// UpstreamRetriesTotal Airbnb API 重试总数
	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Airbnb API 重试总数",
		},
		[]string{"query"},
	)

	// UpstreamRequestDuration Airbnb API 请求耗时
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Airbnb API 请求耗时(秒)",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"query"},
	)

	// AuthFailuresTotal 凭证失效总数
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "账户凭证失效总数",
		},
		[]string{"account_id"},
	)
)

// HTTP 服务指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)
)

// Helper functions

// RecordSyncRun 记录账户同步运行
func RecordSyncRun(trigger, status string, durationSeconds float64) {
	SyncRunsTotal.WithLabelValues(trigger, status).Inc()
	SyncRunDuration.WithLabelValues(trigger).Observe(durationSeconds)
}

// RecordListingSync 记录房源同步结果
func RecordListingSync(status string) {
	ListingSyncsTotal.WithLabelValues(status).Inc()
}

// RecordRowsUpserted 记录指标行写入
func RecordRowsUpserted(table string, count int) {
	RowsUpsertedTotal.WithLabelValues(table).Add(float64(count))
}

// RecordUpstreamRequest 记录上游 API 请求
func RecordUpstreamRequest(query, status string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(query, status).Inc()
	UpstreamRequestDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordUpstreamRetry 记录上游 API 重试
func RecordUpstreamRetry(query string) {
	UpstreamRetriesTotal.WithLabelValues(query).Inc()
}

// RecordAuthFailure 记录凭证失效
func RecordAuthFailure(accountID string) {
	AuthFailuresTotal.WithLabelValues(accountID).Inc()
}

// MarkSyncCompleted 更新账户最后同步时间
func MarkSyncCompleted(accountID string) {
	LastSyncTime.WithLabelValues(accountID).SetToCurrentTime()
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
