package observability

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

// topAgentsLimit 是性能汇总中列出的 Agent 数量上限.
const topAgentsLimit = 5

// hourlyBuckets 是性能汇总中小时直方图的桶数.
const hourlyBuckets = 24

// Sink 接收每一条记录的样本, 例如 Prometheus 导出器.
// 在采集器锁外调用.
type Sink interface {
	ObserveSample(sample types.TokenMetricSample)
}

// SinkFunc 将函数适配为 Sink.
type SinkFunc func(sample types.TokenMetricSample)

// ObserveSample implements Sink.
func (f SinkFunc) ObserveSample(sample types.TokenMetricSample) { f(sample) }

// CollectorOption 配置 TokenMetricsCollector.
type CollectorOption func(*TokenMetricsCollector)

// WithClock 注入时钟, 测试使用.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *TokenMetricsCollector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSink 添加样本接收者.
func WithSink(sink Sink) CollectorOption {
	return func(c *TokenMetricsCollector) {
		if sink != nil {
			c.sinks = append(c.sinks, sink)
		}
	}
}

// TokenMetricsCollector Token 优化指标采集器
// 样本列表有上限, 超出后淘汰最旧的样本.
type TokenMetricsCollector struct {
	cfg    config.MetricsConfig
	logger *zap.Logger
	now    func() time.Time
	sinks  []Sink

	mu      sync.RWMutex
	samples []types.TokenMetricSample
}

// NewTokenMetricsCollector 创建指标采集器
func NewTokenMetricsCollector(cfg config.MetricsConfig, logger *zap.Logger, opts ...CollectorOption) *TokenMetricsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := config.DefaultMetricsConfig()
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = defaults.MaxSamples
	}
	if cfg.AlertWindow <= 0 {
		cfg.AlertWindow = defaults.AlertWindow
	}
	if cfg.MinAlertSamples <= 0 {
		cfg.MinAlertSamples = defaults.MinAlertSamples
	}
	if cfg.LowReductionPercent <= 0 {
		cfg.LowReductionPercent = defaults.LowReductionPercent
	}
	if cfg.LowSavingsTokens <= 0 {
		cfg.LowSavingsTokens = defaults.LowSavingsTokens
	}
	if cfg.NoMemoriesReductionPercent <= 0 {
		cfg.NoMemoriesReductionPercent = defaults.NoMemoriesReductionPercent
	}

	c := &TokenMetricsCollector{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "token_metrics")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record 记录一次优化结果
func (c *TokenMetricsCollector) Record(result types.SRIResult, taskID, agentID string, contextType types.ContextType) types.TokenMetricSample {
	if contextType == "" {
		contextType = types.ContextSimple
	}
	sample := types.TokenMetricSample{
		Timestamp:           c.now(),
		TaskID:              taskID,
		AgentID:             agentID,
		OriginalTokens:      result.OriginalTokens,
		OptimizedTokens:     result.OptimizedTokens,
		ReductionPercentage: result.ReductionPercentage,
		InjectedMemories:    result.MemoryCount(),
		TokensSaved:         result.TokensSaved(),
		ContextType:         contextType,
	}

	c.mu.Lock()
	c.samples = append(c.samples, sample)
	if over := len(c.samples) - c.cfg.MaxSamples; over > 0 {
		// 复制到新切片, 释放被淘汰样本占用的底层数组
		c.samples = append([]types.TokenMetricSample(nil), c.samples[over:]...)
	}
	c.mu.Unlock()

	for _, s := range c.sinks {
		s.ObserveSample(sample)
	}
	return sample
}

// Len 返回当前保留的样本数.
func (c *TokenMetricsCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// PerformanceMetrics 汇总全部保留样本
func (c *TokenMetricsCollector) PerformanceMetrics() types.PerformanceSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := types.PerformanceSummary{
		TopPerformingAgents: []types.AgentPerformance{},
		HourlyStats:         []types.HourlyStat{},
	}
	if len(c.samples) == 0 {
		return summary
	}

	var (
		reductionSum float64
		memorySum    int
		agents       = map[string]*types.AgentPerformance{}
		agentSums    = map[string]float64{}
	)
	for _, s := range c.samples {
		reductionSum += float64(s.ReductionPercentage)
		summary.TotalTokensSaved += s.TokensSaved
		memorySum += s.InjectedMemories

		if s.AgentID == "" {
			continue
		}
		a, ok := agents[s.AgentID]
		if !ok {
			a = &types.AgentPerformance{AgentID: s.AgentID}
			agents[s.AgentID] = a
		}
		a.Optimizations++
		agentSums[s.AgentID] += float64(s.ReductionPercentage)
	}

	n := float64(len(c.samples))
	summary.TotalOptimizations = len(c.samples)
	summary.AverageReduction = reductionSum / n
	summary.AverageMemoriesInjected = float64(memorySum) / n
	summary.TopPerformingAgents = topAgents(agents, agentSums)
	summary.HourlyStats = c.hourlyLocked(c.now())
	return summary
}

func topAgents(agents map[string]*types.AgentPerformance, sums map[string]float64) []types.AgentPerformance {
	out := make([]types.AgentPerformance, 0, len(agents))
	for id, a := range agents {
		a.AverageReduction = sums[id] / float64(a.Optimizations)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageReduction != out[j].AverageReduction {
			return out[i].AverageReduction > out[j].AverageReduction
		}
		return out[i].AgentID < out[j].AgentID
	})
	if len(out) > topAgentsLimit {
		out = out[:topAgentsLimit]
	}
	return out
}

// hourlyLocked 返回截至 now 所在小时的最近 24 个整点桶, 最旧的在前 (UTC).
func (c *TokenMetricsCollector) hourlyLocked(now time.Time) []types.HourlyStat {
	current := now.UTC().Truncate(time.Hour)
	stats := make([]types.HourlyStat, hourlyBuckets)
	sums := make([]float64, hourlyBuckets)
	first := current.Add(-(hourlyBuckets - 1) * time.Hour)

	for i := range stats {
		stats[i].Hour = first.Add(time.Duration(i) * time.Hour).Format("2006-01-02T15:00")
	}
	for _, s := range c.samples {
		ts := s.Timestamp.UTC()
		if ts.Before(first) || !ts.Before(current.Add(time.Hour)) {
			continue
		}
		idx := int(ts.Sub(first) / time.Hour)
		stats[idx].Optimizations++
		sums[idx] += float64(s.ReductionPercentage)
	}
	for i := range stats {
		if stats[i].Optimizations > 0 {
			stats[i].AverageReduction = sums[i] / float64(stats[i].Optimizations)
		}
	}
	return stats
}

// Alerts 评估最近 AlertWindow 个样本; 样本不足 MinAlertSamples 时返回空
func (c *TokenMetricsCollector) Alerts() []types.Alert {
	c.mu.RLock()
	recent := c.samples
	if len(recent) > c.cfg.AlertWindow {
		recent = recent[len(recent)-c.cfg.AlertWindow:]
	}
	if len(recent) < c.cfg.MinAlertSamples {
		c.mu.RUnlock()
		return []types.Alert{}
	}

	var reduction, saved, memories float64
	for _, s := range recent {
		reduction += float64(s.ReductionPercentage)
		saved += float64(s.TokensSaved)
		memories += float64(s.InjectedMemories)
	}
	c.mu.RUnlock()

	n := float64(len(recent))
	reduction /= n
	saved /= n
	memories /= n

	alerts := []types.Alert{}
	if reduction < c.cfg.LowReductionPercent {
		alerts = append(alerts, types.Alert{
			Type:     types.AlertLowReduction,
			Message:  fmt.Sprintf("Token reduction is below %.0f%% (current: %.1f%%)", c.cfg.LowReductionPercent, reduction),
			Severity: types.SeverityMedium,
		})
	}
	if saved < c.cfg.LowSavingsTokens {
		alerts = append(alerts, types.Alert{
			Type:     types.AlertLowSavings,
			Message:  fmt.Sprintf("Average token savings is low (%.0f tokens per request)", saved),
			Severity: types.SeverityLow,
		})
	}
	if memories == 0 && reduction < c.cfg.NoMemoriesReductionPercent {
		alerts = append(alerts, types.Alert{
			Type:     types.AlertNoMemories,
			Message:  "No memories are being injected, consider lowering emotion threshold",
			Severity: types.SeverityHigh,
		})
	}

	if len(alerts) > 0 {
		c.logger.Debug("alerts raised", zap.Int("count", len(alerts)), zap.Float64("avg_reduction", reduction))
	}
	return alerts
}

// AgentMetrics 返回指定 Agent 的样本副本
func (c *TokenMetricsCollector) AgentMetrics(agentID string) []types.TokenMetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []types.TokenMetricSample{}
	for _, s := range c.samples {
		if s.AgentID == agentID {
			out = append(out, s)
		}
	}
	return out
}

// MetricsForRange 返回时间戳落在 [start, end] 内的样本副本
func (c *TokenMetricsCollector) MetricsForRange(start, end time.Time) []types.TokenMetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []types.TokenMetricSample{}
	for _, s := range c.samples {
		if !s.Timestamp.Before(start) && !s.Timestamp.After(end) {
			out = append(out, s)
		}
	}
	return out
}

// Clear 清空所有样本, 返回被清除的数量
func (c *TokenMetricsCollector) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.samples)
	c.samples = nil
	c.logger.Info("token metrics cleared", zap.Int("samples", n))
	return n
}

// Export 将全部样本导出为 JSON 数组
func (c *TokenMetricsCollector) Export() ([]byte, error) {
	c.mu.RLock()
	samples := append([]types.TokenMetricSample{}, c.samples...)
	c.mu.RUnlock()

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export token metrics: %w", err)
	}
	return data, nil
}
