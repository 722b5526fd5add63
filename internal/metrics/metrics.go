// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kinmu"

// Metrics 指标集合，同时实现排班引擎的 Recorder 接口；nil 接收者上的调用均为空操作
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	scheduleTotal    *prometheus.CounterVec
	scheduleDuration prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	solveTotal       *prometheus.CounterVec
	solveNodes       *prometheus.HistogramVec
	fairnessGini     prometheus.Gauge
	coverageRate     prometheus.Gauge
	purgedRows       prometheus.Counter
}

// New 创建独立注册表并注册全部指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		scheduleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_generation_total",
			Help:      "排班生成次数",
		}, []string{"status"}),
		scheduleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_generation_duration_seconds",
			Help:      "排班生成延迟",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_stage_duration_seconds",
			Help:      "排班各阶段耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_runs_total",
			Help:      "求解次数",
		}, []string{"backend", "status"}),
		solveNodes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_nodes",
			Help:      "每次求解的搜索节点数",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"backend"}),
		fairnessGini: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fairness_gini",
			Help:      "最近一次排班的出勤基尼系数",
		}),
		coverageRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_rate",
			Help:      "最近一次排班的覆盖率 (%)",
		}),
		purgedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preference_rows_purged_total",
			Help:      "保留窗口外被清理的偏好记录数",
		}),
	}

	registry.MustRegister(
		m.requestTotal, m.requestDuration,
		m.scheduleTotal, m.scheduleDuration, m.stageDuration,
		m.solveTotal, m.solveNodes,
		m.fairnessGini, m.coverageRate, m.purgedRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest 记录请求指标
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStage 记录流水线阶段耗时
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSolve 记录一次求解
func (m *Metrics) ObserveSolve(backend, status string, nodes int64, _ time.Duration) {
	if m == nil {
		return
	}
	m.solveTotal.WithLabelValues(backend, status).Inc()
	m.solveNodes.WithLabelValues(backend).Observe(float64(nodes))
}

// ObserveSchedule 记录一次排班请求的结果
func (m *Metrics) ObserveSchedule(success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.scheduleTotal.WithLabelValues(status).Inc()
	m.scheduleDuration.Observe(d.Seconds())
}

// SetQuality 记录最近一次排班的公平性与覆盖率
func (m *Metrics) SetQuality(gini, coverage float64) {
	if m == nil {
		return
	}
	m.fairnessGini.Set(gini)
	m.coverageRate.Set(coverage)
}

// AddPurged 累计清理的偏好记录数
func (m *Metrics) AddPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedRows.Add(float64(n))
}
