// Package evolution 根据 token 指标为 SRI 流水线生成参数调优建议。
package evolution

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

// 参数可调范围.
const (
	minEmotionThreshold = 0.3
	maxEmotionThreshold = 0.9
	minContextWindow    = 1
	maxContextWindow    = 5
	minMemoryDecay      = 0.8
	maxMemoryDecay      = 0.99

	thresholdStep = 0.1
	decayStep     = 0.02

	// 有效性比较的窗口大小: 最近 5 次 vs 之前 5 次
	effectivenessWindow = 5
	// 趋势判定带宽 (百分点)
	trendBand = 5.0
)

// MetricsSource 是调优器读取指标的只读视图.
// agent/observability.TokenMetricsCollector 满足该接口.
type MetricsSource interface {
	PerformanceMetrics() types.PerformanceSummary
	MetricsForRange(start, end time.Time) []types.TokenMetricSample
}

// TuningObserver 在每次记录调优历史时被调用.
type TuningObserver interface {
	ObserveTuning(entry types.TuningHistoryEntry)
}

// TunerOption 配置 AdaptiveTuner.
type TunerOption func(*AdaptiveTuner)

// WithClock 注入时钟.
func WithClock(now func() time.Time) TunerOption {
	return func(t *AdaptiveTuner) {
		if now != nil {
			t.now = now
		}
	}
}

// WithObserver 注册调优观察者.
func WithObserver(o TuningObserver) TunerOption {
	return func(t *AdaptiveTuner) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// AdaptiveTuner 自适应调优器.
// 只读取指标并返回新的配置值, 从不修改共享配置; 应用由调用方通过 PipelineHolder 完成.
type AdaptiveTuner struct {
	cfg       config.TunerConfig
	logger    *zap.Logger
	now       func() time.Time
	observers []TuningObserver

	mu      sync.RWMutex
	history []types.TuningHistoryEntry
}

// NewAdaptiveTuner 创建调优器.
func NewAdaptiveTuner(cfg config.TunerConfig, logger *zap.Logger, opts ...TunerOption) *AdaptiveTuner {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := config.DefaultTunerConfig()
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaults.MaxHistory
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaults.MinSamples
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaults.Lookback
	}
	if cfg.ApplyConfidence <= 0 {
		cfg.ApplyConfidence = defaults.ApplyConfidence
	}

	t := &AdaptiveTuner{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "adaptive_tuner")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AnalyzeAndRecommend 分析指标并为三个参数各给出至多一条建议.
// 回看窗口内样本不足 MinSamples 时返回空列表.
func (t *AdaptiveTuner) AnalyzeAndRecommend(current config.PipelineConfig, source MetricsSource) []types.TuningRecommendation {
	recs := []types.TuningRecommendation{}
	if source == nil {
		return recs
	}

	now := t.now()
	recent := source.MetricsForRange(now.Add(-t.cfg.Lookback), now)
	if len(recent) < t.cfg.MinSamples {
		t.logger.Debug("not enough samples for tuning",
			zap.Int("samples", len(recent)),
			zap.Int("required", t.cfg.MinSamples))
		return recs
	}

	summary := source.PerformanceMetrics()
	for _, analyze := range []func(config.PipelineConfig, types.PerformanceSummary) *types.TuningRecommendation{
		analyzeEmotionThreshold,
		analyzeContextWindow,
		analyzeMemoryDecay,
	} {
		if rec := analyze(current, summary); rec != nil {
			recs = append(recs, *rec)
		}
	}
	return recs
}

func analyzeEmotionThreshold(cfg config.PipelineConfig, s types.PerformanceSummary) *types.TuningRecommendation {
	reduction, memories := s.AverageReduction, s.AverageMemoriesInjected
	current := cfg.EmotionThreshold

	switch {
	case reduction < 30 && memories < 0.5:
		return &types.TuningRecommendation{
			Parameter:        types.ParamEmotionThreshold,
			CurrentValue:     current,
			RecommendedValue: roundValue(math.Max(minEmotionThreshold, current-thresholdStep)),
			Reason: fmt.Sprintf("Low token reduction (%.1f%%) and no memories injected. "+
				"Lowering threshold to increase memory storage.", reduction),
			Confidence: 0.8,
			Impact:     types.ImpactHigh,
		}
	case memories > 5 && reduction < 20:
		return &types.TuningRecommendation{
			Parameter:        types.ParamEmotionThreshold,
			CurrentValue:     current,
			RecommendedValue: roundValue(math.Min(maxEmotionThreshold, current+thresholdStep)),
			Reason: fmt.Sprintf("Too many memories injected (%.1f) with low reduction. "+
				"Raising threshold to reduce noise.", memories),
			Confidence: 0.7,
			Impact:     types.ImpactMedium,
		}
	}
	return nil
}

func analyzeContextWindow(cfg config.PipelineConfig, s types.PerformanceSummary) *types.TuningRecommendation {
	reduction := s.AverageReduction
	current := cfg.ContextWindow

	switch {
	case reduction > 90:
		return &types.TuningRecommendation{
			Parameter:        types.ParamContextWindow,
			CurrentValue:     float64(current),
			RecommendedValue: float64(min(maxContextWindow, current+1)),
			Reason: fmt.Sprintf("Very high token reduction (%.1f%%) might indicate loss of important context.",
				reduction),
			Confidence: 0.6,
			Impact:     types.ImpactMedium,
		}
	case reduction < 20:
		return &types.TuningRecommendation{
			Parameter:        types.ParamContextWindow,
			CurrentValue:     float64(current),
			RecommendedValue: float64(max(minContextWindow, current-1)),
			Reason: fmt.Sprintf("Low token reduction (%.1f%%). "+
				"Reducing context window for more aggressive optimization.", reduction),
			Confidence: 0.7,
			Impact:     types.ImpactHigh,
		}
	}
	return nil
}

func analyzeMemoryDecay(cfg config.PipelineConfig, s types.PerformanceSummary) *types.TuningRecommendation {
	memories := s.AverageMemoriesInjected
	current := cfg.MemoryDecay

	switch {
	case memories > 3:
		return &types.TuningRecommendation{
			Parameter:        types.ParamMemoryDecay,
			CurrentValue:     current,
			RecommendedValue: roundValue(math.Min(maxMemoryDecay, current+decayStep)),
			Reason: fmt.Sprintf("High memory injection (%.1f). "+
				"Increasing decay to reduce memory accumulation.", memories),
			Confidence: 0.6,
			Impact:     types.ImpactLow,
		}
	case memories < 0.5:
		return &types.TuningRecommendation{
			Parameter:        types.ParamMemoryDecay,
			CurrentValue:     current,
			RecommendedValue: roundValue(math.Max(minMemoryDecay, current-decayStep)),
			Reason: fmt.Sprintf("Low memory injection (%.1f). "+
				"Decreasing decay to retain memories longer.", memories),
			Confidence: 0.7,
			Impact:     types.ImpactMedium,
		}
	}
	return nil
}

// roundValue 去掉步进加减带来的浮点噪声 (0.7-0.1 = 0.6 而非 0.59999...).
func roundValue(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// ApplyRecommendations 返回应用了高置信度建议 (confidence > ApplyConfidence) 的配置副本.
func (t *AdaptiveTuner) ApplyRecommendations(current config.PipelineConfig, recs []types.TuningRecommendation) config.PipelineConfig {
	next := current
	for _, rec := range recs {
		if !t.Accepts(rec) {
			continue
		}
		switch rec.Parameter {
		case types.ParamEmotionThreshold:
			next.EmotionThreshold = rec.RecommendedValue
		case types.ParamContextWindow:
			next.ContextWindow = int(math.Floor(rec.RecommendedValue + 0.5))
		case types.ParamMemoryDecay:
			next.MemoryDecay = rec.RecommendedValue
		default:
			t.logger.Warn("ignoring recommendation for unknown parameter",
				zap.String("parameter", string(rec.Parameter)))
		}
	}
	return next
}

// Accepts 报告建议的置信度是否高于自动应用门槛.
func (t *AdaptiveTuner) Accepts(rec types.TuningRecommendation) bool {
	return rec.Confidence > t.cfg.ApplyConfidence
}

// AutoTune 组合 AnalyzeAndRecommend 与 ApplyRecommendations, 并为每条应用的建议记录历史.
// 同时把当前平均压缩率回填到尚未闭合的历史条目 (PerformanceAfter).
func (t *AdaptiveTuner) AutoTune(current config.PipelineConfig, source MetricsSource) (config.PipelineConfig, []types.TuningHistoryEntry) {
	if source == nil {
		return current, nil
	}
	performance := source.PerformanceMetrics().AverageReduction
	t.closeOpenEntries(performance)

	recs := t.AnalyzeAndRecommend(current, source)
	accepted := make([]types.TuningRecommendation, 0, len(recs))
	for _, rec := range recs {
		if t.Accepts(rec) && rec.RecommendedValue != rec.CurrentValue {
			accepted = append(accepted, rec)
		}
	}
	if len(accepted) == 0 {
		return current, nil
	}

	next := t.ApplyRecommendations(current, accepted)
	now := t.now()
	entries := make([]types.TuningHistoryEntry, 0, len(accepted))
	for _, rec := range accepted {
		entries = append(entries, types.TuningHistoryEntry{
			Timestamp:         now,
			Parameter:         rec.Parameter,
			OldValue:          rec.CurrentValue,
			NewValue:          rec.RecommendedValue,
			Reason:            rec.Reason,
			PerformanceBefore: performance,
		})
	}
	t.record(entries)

	t.logger.Info("auto-tune produced new configuration",
		zap.Int("applied", len(entries)),
		zap.Float64("emotion_threshold", next.EmotionThreshold),
		zap.Int("context_window", next.ContextWindow),
		zap.Float64("memory_decay", next.MemoryDecay),
		zap.Float64("performance_before", performance))
	return next, entries
}

// RecordTuning 记录一次手动应用的调优.
func (t *AdaptiveTuner) RecordTuning(rec types.TuningRecommendation, performanceBefore float64) types.TuningHistoryEntry {
	entry := types.TuningHistoryEntry{
		Timestamp:         t.now(),
		Parameter:         rec.Parameter,
		OldValue:          rec.CurrentValue,
		NewValue:          rec.RecommendedValue,
		Reason:            rec.Reason,
		PerformanceBefore: performanceBefore,
	}
	t.record([]types.TuningHistoryEntry{entry})
	return entry
}

func (t *AdaptiveTuner) record(entries []types.TuningHistoryEntry) {
	t.mu.Lock()
	t.history = append(t.history, entries...)
	if over := len(t.history) - t.cfg.MaxHistory; over > 0 {
		t.history = append([]types.TuningHistoryEntry(nil), t.history[over:]...)
	}
	t.mu.Unlock()

	for _, e := range entries {
		for _, o := range t.observers {
			o.ObserveTuning(e)
		}
	}
}

func (t *AdaptiveTuner) closeOpenEntries(performance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.history {
		if t.history[i].PerformanceAfter == nil {
			v := performance
			t.history[i].PerformanceAfter = &v
		}
	}
}

// History 返回调优历史副本, 最旧的在前.
func (t *AdaptiveTuner) History() []types.TuningHistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.TuningHistoryEntry, len(t.history))
	for i, e := range t.history {
		out[i] = e
		if e.PerformanceAfter != nil {
			v := *e.PerformanceAfter
			out[i].PerformanceAfter = &v
		}
	}
	return out
}

// TuningEffectiveness 按参数比较最近 5 次与之前 5 次调优后的平均表现.
// 只统计已回填 PerformanceAfter 的条目; 不足两组的参数不出现在结果中.
func (t *AdaptiveTuner) TuningEffectiveness() []types.TuningEffectiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []types.TuningEffectiveness{}
	for _, param := range []types.TuningParameter{
		types.ParamEmotionThreshold,
		types.ParamContextWindow,
		types.ParamMemoryDecay,
	} {
		var after []float64
		for _, e := range t.history {
			if e.Parameter == param && e.PerformanceAfter != nil {
				after = append(after, *e.PerformanceAfter)
			}
		}
		if len(after) <= effectivenessWindow {
			continue
		}

		recent := after[len(after)-effectivenessWindow:]
		older := after[max(0, len(after)-2*effectivenessWindow) : len(after)-effectivenessWindow]
		score := mean(recent) - mean(older)

		trend := types.TrendStable
		switch {
		case score > trendBand:
			trend = types.TrendImproving
		case score < -trendBand:
			trend = types.TrendDeclining
		}
		out = append(out, types.TuningEffectiveness{Parameter: param, Effectiveness: score, Trend: trend})
	}
	return out
}

// Reset 清空调优历史.
func (t *AdaptiveTuner) Reset() {
	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
