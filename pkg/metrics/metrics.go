// Package metrics 基于Prometheus的指标
//
// 指标分三组：
//   - HTTP：请求数、耗时、并发数（由HTTP中间件采集）
//   - 重算任务：投递、合并、执行结果、耗时、重试（由调度器与队列采集）
//   - 熔断器与消息队列：状态、请求结果、消息发布/消费
//
// 所有指标通过promauto注册到默认Registry，/metrics端点由promhttp暴露。
// 未调用InitMetrics时，下面的辅助函数都是空操作（单元测试不需要初始化）。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once        sync.Once
	initialized atomic.Bool

	// HTTP
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInProgress prometheus.Gauge

	// 重算任务
	RecalcEnqueuedTotal *prometheus.CounterVec   // job, result(enqueued/coalesced/failed)
	RecalcJobsTotal     *prometheus.CounterVec   // job, result(success/failure/noop)
	RecalcJobDuration   *prometheus.HistogramVec // job
	RecalcRetriesTotal  *prometheus.CounterVec   // job
	RecalcDeadTotal     *prometheus.CounterVec   // job

	// 熔断器
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// 消息队列
	MessagesPublishedTotal    *prometheus.CounterVec
	MessagesConsumedTotal     *prometheus.CounterVec
	MessageProcessingDuration prometheus.Histogram
)

// 任务结果标签
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultNoop      = "noop"
	ResultEnqueued  = "enqueued"
	ResultCoalesced = "coalesced"
	ResultRejected  = "rejected"
)

// InitMetrics 初始化所有指标（重复调用安全）
func InitMetrics() {
	once.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP请求总数",
			},
			[]string{"method", "path", "status"},
		)
		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP请求耗时（秒）",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method", "path"},
		)
		HTTPRequestsInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_progress",
				Help: "正在处理的HTTP请求数",
			},
		)

		RecalcEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recalc_jobs_enqueued_total",
				Help: "重算任务投递次数（含被合并、投递失败）",
			},
			[]string{"job", "result"},
		)
		RecalcJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recalc_jobs_executed_total",
				Help: "重算任务执行次数",
			},
			[]string{"job", "result"},
		)
		RecalcJobDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recalc_job_duration_seconds",
				Help:    "重算任务执行耗时（秒）",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"job"},
		)
		RecalcRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recalc_job_retries_total",
				Help: "重算任务重试次数",
			},
			[]string{"job"},
		)
		RecalcDeadTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recalc_jobs_dead_total",
				Help: "超过最大重试次数而放弃的重算任务数",
			},
			[]string{"job"},
		)

		CircuitBreakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
			},
			[]string{"name"},
		)
		CircuitBreakerRequests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "熔断器请求总数",
			},
			[]string{"name", "result"}, // success/failure/rejected
		)

		MessagesPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_published_total",
				Help: "消息发布总数",
			},
			[]string{"exchange", "routing_key"},
		)
		MessagesConsumedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_consumed_total",
				Help: "消息消费总数",
			},
			[]string{"queue", "result"},
		)
		MessageProcessingDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "message_processing_duration_seconds",
				Help:    "消息处理耗时（秒）",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			},
		)

		initialized.Store(true)
	})
}

// Enabled 指标是否已初始化
func Enabled() bool {
	return initialized.Load()
}

// ObserveHTTPRequest 记录一次HTTP请求
func ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if !initialized.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// HTTPInFlight 并发请求数增减（delta为+1或-1）
func HTTPInFlight(delta float64) {
	if !initialized.Load() {
		return
	}
	HTTPRequestsInProgress.Add(delta)
}

// RecordEnqueue 记录一次任务投递
func RecordEnqueue(job, result string) {
	if !initialized.Load() {
		return
	}
	RecalcEnqueuedTotal.WithLabelValues(job, result).Inc()
}

// ObserveJob 记录一次任务执行
func ObserveJob(job, result string, d time.Duration) {
	if !initialized.Load() {
		return
	}
	RecalcJobsTotal.WithLabelValues(job, result).Inc()
	RecalcJobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordRetry 记录一次任务重试
func RecordRetry(job string) {
	if !initialized.Load() {
		return
	}
	RecalcRetriesTotal.WithLabelValues(job).Inc()
}

// RecordDead 记录一个被放弃的任务
func RecordDead(job string) {
	if !initialized.Load() {
		return
	}
	RecalcDeadTotal.WithLabelValues(job).Inc()
}

// SetCircuitBreakerState 更新熔断器状态
func SetCircuitBreakerState(name string, state int) {
	if !initialized.Load() {
		return
	}
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerRequest 记录熔断器请求结果
func RecordCircuitBreakerRequest(name, result string) {
	if !initialized.Load() {
		return
	}
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordPublish 记录消息发布
func RecordPublish(exchange, routingKey string) {
	if !initialized.Load() {
		return
	}
	MessagesPublishedTotal.WithLabelValues(exchange, routingKey).Inc()
}

// ObserveConsume 记录消息消费
func ObserveConsume(queue, result string, d time.Duration) {
	if !initialized.Load() {
		return
	}
	MessagesConsumedTotal.WithLabelValues(queue, result).Inc()
	MessageProcessingDuration.Observe(d.Seconds())
}
