package middleware

import (
	"strconv"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusMetrics 服务指标，每个实例使用独立的 Registry
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 解析
	parsesTotal          *prometheus.CounterVec
	parseDuration        *prometheus.HistogramVec
	reportsByRisk        *prometheus.CounterVec
	dangerousPermissions prometheus.Counter
	expiredCertificates  prometheus.Counter
	packedApks           *prometheus.CounterVec

	// 任务
	jobsTotal      *prometheus.CounterVec
	jobsInProgress prometheus.Gauge

	memoryUsage     prometheus.Gauge
	goroutinesCount prometheus.Gauge
	gcCount         prometheus.Gauge

	workerPoolSize      prometheus.Gauge
	workerPoolActive    prometheus.Gauge
	workerPoolQueueSize prometheus.Gauge

	dbConnectionsOpen  prometheus.Gauge
	dbConnectionsIdle  prometheus.Gauge
	dbConnectionsInUse prometheus.Gauge

	retryAttemptsTotal *prometheus.CounterVec
}

var (
	httpBuckets  = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}
	parseBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
)

// metricFactory 给所有指标加同一个 namespace
type metricFactory struct {
	f  promauto.Factory
	ns string
}

func (m metricFactory) counter(name, help string) prometheus.Counter {
	return m.f.NewCounter(prometheus.CounterOpts{Namespace: m.ns, Name: name, Help: help})
}

func (m metricFactory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return m.f.NewCounterVec(prometheus.CounterOpts{Namespace: m.ns, Name: name, Help: help}, labels)
}

func (m metricFactory) gauge(name, help string) prometheus.Gauge {
	return m.f.NewGauge(prometheus.GaugeOpts{Namespace: m.ns, Name: name, Help: help})
}

func (m metricFactory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return m.f.NewHistogramVec(prometheus.HistogramOpts{Namespace: m.ns, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewPrometheusMetrics 创建指标收集器，附带 Go 运行时和进程指标
func NewPrometheusMetrics(logger *logrus.Logger, namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "apk_inspector"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metricFactory{f: promauto.With(reg), ns: namespace}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: reg,

		httpRequestsTotal:   m.counterVec("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		httpRequestDuration: m.histogramVec("http_request_duration_seconds", "HTTP request latencies in seconds", httpBuckets, "method", "path"),

		// source: decoder/internal/unknown, status: success/failure
		parsesTotal:          m.counterVec("apk_parses_total", "Total number of APK parses", "source", "status"),
		parseDuration:        m.histogramVec("apk_parse_duration_seconds", "APK parse duration in seconds", parseBuckets, "status"),
		reportsByRisk:        m.counterVec("reports_by_risk_total", "Total number of reports per permission risk level", "risk_level"),
		dangerousPermissions: m.counter("dangerous_permissions_total", "Total number of dangerous permissions seen"),
		expiredCertificates:  m.counter("expired_certificates_total", "Total number of APKs signed with an expired certificate"),
		packedApks:           m.counterVec("packed_apks_total", "Total number of APKs with a detected packer", "packer"),

		jobsTotal:      m.counterVec("jobs_total", "Total number of parse job transitions", "status"),
		jobsInProgress: m.gauge("jobs_in_progress", "Number of parse jobs currently running"),

		memoryUsage:     m.gauge("memory_usage_bytes", "Heap bytes allocated at the last sample"),
		goroutinesCount: m.gauge("goroutines_count", "Goroutines at the last sample"),
		gcCount:         m.gauge("gc_count", "Completed GC cycles at the last sample"),

		workerPoolSize:      m.gauge("worker_pool_size", "Total number of workers in the pool"),
		workerPoolActive:    m.gauge("worker_pool_active", "Number of busy workers"),
		workerPoolQueueSize: m.gauge("worker_pool_queue_size", "Number of jobs waiting in the pool queue"),

		dbConnectionsOpen:  m.gauge("db_connections_open", "Number of open database connections"),
		dbConnectionsIdle:  m.gauge("db_connections_idle", "Number of idle database connections"),
		dbConnectionsInUse: m.gauge("db_connections_in_use", "Number of database connections in use"),

		retryAttemptsTotal: m.counterVec("retry_attempts_total", "Total number of retry attempts", "operation", "attempt"),
	}

	logger.WithField("namespace", namespace).Info("Prometheus metrics initialized")
	return pm
}

// Registry 指标注册表
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// HTTPMiddleware 按路由模板统计请求数和耗时
func (pm *PrometheusMetrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		pm.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		pm.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 端点
func (pm *PrometheusMetrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		Registry: pm.registry,
	}))
}

// ParseSucceeded 实现 service.ParseObserver
func (pm *PrometheusMetrics) ParseSucceeded(report *domain.ApkReport, duration time.Duration) {
	pm.parsesTotal.WithLabelValues(string(report.Source), "success").Inc()
	pm.parseDuration.WithLabelValues("success").Observe(duration.Seconds())
	pm.reportsByRisk.WithLabelValues(report.RiskLevel).Inc()
	pm.dangerousPermissions.Add(float64(report.DangerousCount))

	if report.CertExpired {
		pm.expiredCertificates.Inc()
	}
	if report.PackerName != "" {
		pm.packedApks.WithLabelValues(report.PackerName).Inc()
	}
}

// ParseFailed 实现 service.ParseObserver
func (pm *PrometheusMetrics) ParseFailed(fileName string, err error, duration time.Duration) {
	pm.parsesTotal.WithLabelValues("unknown", "failure").Inc()
	pm.parseDuration.WithLabelValues("failure").Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordJobQueued() {
	pm.jobsTotal.WithLabelValues(string(domain.JobStatusQueued)).Inc()
}

func (pm *PrometheusMetrics) RecordJobStarted() {
	pm.jobsTotal.WithLabelValues(string(domain.JobStatusRunning)).Inc()
	pm.jobsInProgress.Inc()
}

func (pm *PrometheusMetrics) RecordJobFinished(failed bool) {
	status := domain.JobStatusCompleted
	if failed {
		status = domain.JobStatusFailed
	}
	pm.jobsTotal.WithLabelValues(string(status)).Inc()
	pm.jobsInProgress.Dec()
}

// UpdateMemoryStats 作为 MemoryMonitor 的采样回调
func (pm *PrometheusMetrics) UpdateMemoryStats(stats MemoryStats) {
	pm.memoryUsage.Set(float64(stats.Alloc))
	pm.goroutinesCount.Set(float64(stats.Goroutines))
	pm.gcCount.Set(float64(stats.NumGC))
}

func (pm *PrometheusMetrics) UpdateWorkerPoolStats(size, active, queueSize int) {
	pm.workerPoolSize.Set(float64(size))
	pm.workerPoolActive.Set(float64(active))
	pm.workerPoolQueueSize.Set(float64(queueSize))
}

func (pm *PrometheusMetrics) UpdateDBStats(open, idle, inUse int) {
	pm.dbConnectionsOpen.Set(float64(open))
	pm.dbConnectionsIdle.Set(float64(idle))
	pm.dbConnectionsInUse.Set(float64(inUse))
}

// RecordRetryAttempt 签名与 retry.Config.OnRetry 一致
func (pm *PrometheusMetrics) RecordRetryAttempt(operation string, attempt int, err error) {
	pm.retryAttemptsTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
}
