package sri

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/agent/evolution"
	"github.com/BaSui01/sriflow/agent/observability"
	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

// Holder 应用来源标记.
const (
	SourceManualTuning = "tuning:manual"
	SourceAutoTune     = "tuning:auto"
)

// Runtime 组合流水线、指标采集器、调优器与共享配置, 对外提供完整的 SRI 接口.
// 调优器只返回新配置值; Runtime 是唯一通过 PipelineHolder.Apply 写入配置的一方.
type Runtime struct {
	pipeline  *Pipeline
	collector *observability.TokenMetricsCollector
	tuner     *evolution.AdaptiveTuner
	holder    *config.PipelineHolder
	logger    *zap.Logger
}

// NewRuntime 创建 Runtime.
func NewRuntime(
	pipeline *Pipeline,
	collector *observability.TokenMetricsCollector,
	tuner *evolution.AdaptiveTuner,
	holder *config.PipelineHolder,
	logger *zap.Logger,
) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		pipeline:  pipeline,
		collector: collector,
		tuner:     tuner,
		holder:    holder,
		logger:    logger.With(zap.String("component", "sri_runtime")),
	}
}

// Pipeline 返回底层流水线.
func (r *Runtime) Pipeline() *Pipeline { return r.pipeline }

// Collector 返回指标采集器.
func (r *Runtime) Collector() *observability.TokenMetricsCollector { return r.collector }

// OptimizeContext 见 Pipeline.OptimizeContext.
func (r *Runtime) OptimizeContext(ctx context.Context, turns []types.Turn, taskID string, threshold float64) (types.SRIResult, error) {
	return r.pipeline.OptimizeContext(ctx, turns, taskID, threshold)
}

// OptimizeContextForAgent 见 Pipeline.OptimizeContextForAgent.
func (r *Runtime) OptimizeContextForAgent(ctx context.Context, agentID string, turns []types.Turn, taskID string, threshold float64) (types.SRIResult, error) {
	return r.pipeline.OptimizeContextForAgent(ctx, agentID, turns, taskID, threshold)
}

// StoreExperience 见 Pipeline.StoreExperience.
func (r *Runtime) StoreExperience(ctx context.Context, taskID, contextText string, result types.TaskResult) (*types.AffectiveVector, error) {
	return r.pipeline.StoreExperience(ctx, taskID, contextText, result)
}

// GetMemoryStats 返回记忆统计.
func (r *Runtime) GetMemoryStats() MemoryStatsReport {
	return r.pipeline.MemoryStats()
}

// GetPerformanceMetrics 返回 token 优化性能汇总.
func (r *Runtime) GetPerformanceMetrics() types.PerformanceSummary {
	return r.collector.PerformanceMetrics()
}

// GetAlerts 返回当前告警.
func (r *Runtime) GetAlerts() []types.Alert {
	return r.collector.Alerts()
}

// GetAgentMetrics 返回指定 Agent 的样本.
func (r *Runtime) GetAgentMetrics(agentID string) []types.TokenMetricSample {
	return r.collector.AgentMetrics(agentID)
}

// GetTuningRecommendations 基于当前配置与指标生成建议, 不应用.
func (r *Runtime) GetTuningRecommendations() []types.TuningRecommendation {
	return r.tuner.AnalyzeAndRecommend(r.holder.Load(), r.collector)
}

// ApplyTuningRecommendations 应用其中高置信度的建议并写入调优历史.
// 建议在配置容器的写锁内叠加到最新配置上, 不会覆盖并发写入的其他字段.
// 没有建议改变配置时返回当前配置且不写入.
func (r *Runtime) ApplyTuningRecommendations(recs []types.TuningRecommendation) (config.PipelineConfig, error) {
	changed := false
	next, err := r.holder.Update(func(current config.PipelineConfig) (config.PipelineConfig, error) {
		next := r.tuner.ApplyRecommendations(current, recs)
		changed = next != current
		return next, nil
	}, SourceManualTuning)
	if err != nil || !changed {
		return next, err
	}

	performance := r.collector.PerformanceMetrics().AverageReduction
	for _, rec := range recs {
		if r.tuner.Accepts(rec) && rec.RecommendedValue != rec.CurrentValue {
			r.tuner.RecordTuning(rec, performance)
		}
	}
	r.logger.Info("tuning recommendations applied",
		zap.Int("recommendations", len(recs)),
		zap.Float64("emotion_threshold", next.EmotionThreshold),
		zap.Int("context_window", next.ContextWindow),
		zap.Float64("memory_decay", next.MemoryDecay))
	return next, nil
}

// AutoTune 执行一轮自动调优, 有变化时写入共享配置.
// 分析与写入在同一次 Update 内完成, 基于的始终是最新配置.
func (r *Runtime) AutoTune() (config.PipelineConfig, []types.TuningHistoryEntry, error) {
	var entries []types.TuningHistoryEntry
	next, err := r.holder.Update(func(current config.PipelineConfig) (config.PipelineConfig, error) {
		var tuned config.PipelineConfig
		tuned, entries = r.tuner.AutoTune(current, r.collector)
		return tuned, nil
	}, SourceAutoTune)
	if err != nil {
		r.logger.Warn("auto-tune produced an invalid configuration", zap.Error(err))
		return next, nil, err
	}
	return next, entries, nil
}

// RunAutoTune 按 interval 周期执行 AutoTune, 直到 ctx 结束.
func (r *Runtime) RunAutoTune(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return types.NewError(types.ErrInvalidConfig, "auto-tune interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("auto-tune loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("auto-tune loop stopped")
			return nil
		case <-ticker.C:
			if _, entries, err := r.AutoTune(); err != nil {
				r.logger.Warn("auto-tune failed", zap.Error(err))
			} else if len(entries) > 0 {
				r.logger.Info("auto-tune applied", zap.Int("changes", len(entries)))
			}
		}
	}
}

// TuningHistory 返回调优历史.
func (r *Runtime) TuningHistory() []types.TuningHistoryEntry {
	return r.tuner.History()
}

// TuningEffectiveness 返回各参数的调优有效性.
func (r *Runtime) TuningEffectiveness() []types.TuningEffectiveness {
	return r.tuner.TuningEffectiveness()
}

// RollbackConfig 回退到上一个已应用的配置版本, 回退本身记为新版本.
func (r *Runtime) RollbackConfig() (config.PipelineConfig, error) {
	if err := r.holder.Rollback(); err != nil {
		return r.holder.Load(), err
	}
	cfg := r.holder.Load()
	r.logger.Info("pipeline config rolled back",
		zap.Int("version", r.holder.Version()),
		zap.Float64("emotion_threshold", cfg.EmotionThreshold),
		zap.Int("context_window", cfg.ContextWindow),
		zap.Float64("memory_decay", cfg.MemoryDecay))
	return cfg, nil
}

// Config 返回当前配置快照.
func (r *Runtime) Config() config.PipelineConfig {
	return r.holder.Load()
}
