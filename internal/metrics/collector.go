// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
//
// 同时实现 memory.StoreObserver、observability.Sink 与 evolution.TuningObserver，
// 把记忆存储、token 优化与调优事件导出为 Prometheus 指标。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// SRI 优化指标
	optimizationsTotal *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	tokensSavedTotal   prometheus.Counter
	reductionPercent   *prometheus.HistogramVec
	memoriesInjected   prometheus.Histogram

	// 情景记忆指标
	memoryAdmissions *prometheus.CounterVec
	memoryEvictions  prometheus.Counter
	memoryEntries    prometheus.Gauge

	// 调优指标
	tuningAppliedTotal *prometheus.CounterVec
	pipelineConfig     *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建指标收集器，注册到指定 Registerer
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// SRI 优化指标
	c.optimizationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sri",
			Name:      "optimizations_total",
			Help:      "Total number of context optimizations",
		},
		[]string{"context_type"},
	)

	c.tokensTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sri",
			Name:      "tokens_total",
			Help:      "Total tokens before and after optimization",
		},
		[]string{"stage"}, // stage: original, optimized
	)

	c.tokensSavedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sri",
			Name:      "tokens_saved_total",
			Help:      "Total tokens saved by optimization (negative savings are not counted)",
		},
	)

	c.reductionPercent = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sri",
			Name:      "reduction_percent",
			Help:      "Token reduction percentage per optimization",
			Buckets:   []float64{-50, 0, 10, 20, 30, 50, 70, 80, 90, 95},
		},
		[]string{"context_type"},
	)

	c.memoriesInjected = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sri",
			Name:      "memories_injected",
			Help:      "Number of memories injected per optimization",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	// 情景记忆指标
	c.memoryAdmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "admissions_total",
			Help:      "Experiences offered to the episodic store",
		},
		[]string{"outcome", "admitted"},
	)

	c.memoryEvictions = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "evictions_total",
			Help:      "Memories evicted to respect capacity",
		},
	)

	c.memoryEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "entries",
			Help:      "Current number of episodic memories",
		},
	)

	// 调优指标
	c.tuningAppliedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "applied_total",
			Help:      "Tuning changes recorded per parameter",
		},
		[]string{"parameter"},
	)

	c.pipelineConfig = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "config",
			Help:      "Current pipeline parameter values",
		},
		[]string{"parameter"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧠 SRI 指标记录
// =============================================================================

// ObserveSample 记录一次上下文优化 (observability.Sink)
func (c *Collector) ObserveSample(sample types.TokenMetricSample) {
	contextType := string(sample.ContextType)
	if contextType == "" {
		contextType = string(types.ContextSimple)
	}
	c.optimizationsTotal.WithLabelValues(contextType).Inc()
	c.tokensTotal.WithLabelValues("original").Add(float64(sample.OriginalTokens))
	c.tokensTotal.WithLabelValues("optimized").Add(float64(sample.OptimizedTokens))
	if sample.TokensSaved > 0 {
		c.tokensSavedTotal.Add(float64(sample.TokensSaved))
	}
	c.reductionPercent.WithLabelValues(contextType).Observe(float64(sample.ReductionPercentage))
	c.memoriesInjected.Observe(float64(sample.InjectedMemories))
}

// ObserveAdmission 记录一次入库尝试 (memory.StoreObserver)
func (c *Collector) ObserveAdmission(outcome types.Outcome, admitted bool) {
	c.memoryAdmissions.WithLabelValues(string(outcome), strconv.FormatBool(admitted)).Inc()
}

// ObserveEvictions 记录淘汰数量
func (c *Collector) ObserveEvictions(n int) {
	if n > 0 {
		c.memoryEvictions.Add(float64(n))
	}
}

// ObserveSize 记录当前记忆数量
func (c *Collector) ObserveSize(n int) {
	c.memoryEntries.Set(float64(n))
}

// =============================================================================
// 🔧 调优指标记录
// =============================================================================

// ObserveTuning 记录一条调优历史 (evolution.TuningObserver)
func (c *Collector) ObserveTuning(entry types.TuningHistoryEntry) {
	c.tuningAppliedTotal.WithLabelValues(string(entry.Parameter)).Inc()
}

// ObserveConfig 导出当前管道参数，可作为 PipelineHolder.OnApply 回调
func (c *Collector) ObserveConfig(_, next config.PipelineConfig) {
	c.pipelineConfig.WithLabelValues(string(types.ParamEmotionThreshold)).Set(next.EmotionThreshold)
	c.pipelineConfig.WithLabelValues(string(types.ParamContextWindow)).Set(float64(next.ContextWindow))
	c.pipelineConfig.WithLabelValues(string(types.ParamMemoryDecay)).Set(next.MemoryDecay)
	c.pipelineConfig.WithLabelValues("maxMemories").Set(float64(next.MaxMemories))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
