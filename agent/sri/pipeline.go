package sri

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	agentcontext "github.com/BaSui01/sriflow/agent/context"
	"github.com/BaSui01/sriflow/agent/memory"
	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

var tracer = otel.Tracer("github.com/BaSui01/sriflow/agent/sri")

// DefaultRelevanceThreshold 是召回与注入的默认相关度门槛.
const DefaultRelevanceThreshold = 0.7

// Recorder 接收每次优化的结果.
// agent/observability.TokenMetricsCollector 满足该接口.
type Recorder interface {
	Record(result types.SRIResult, taskID, agentID string, contextType types.ContextType) types.TokenMetricSample
}

// Option 配置 Pipeline.
type Option func(*Pipeline)

// WithRecorder 挂接指标记录器.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock 注入时钟, 用于情感向量时间戳.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline 实现 Strip-Recall-Inject: 裁剪对话, 从情景记忆召回相关经验, 再把压缩形式注入上下文.
// 每次调用从 PipelineHolder 读取一份配置快照.
type Pipeline struct {
	holder      *config.PipelineHolder
	store       *memory.EpisodicStore
	transformer *agentcontext.Transformer
	recorder    Recorder
	now         func() time.Time
	logger      *zap.Logger
}

// NewPipeline 创建流水线. transformer 为 nil 时使用默认估算器.
func NewPipeline(holder *config.PipelineHolder, store *memory.EpisodicStore, transformer *agentcontext.Transformer, logger *zap.Logger, opts ...Option) *Pipeline {
	if holder == nil {
		panic("sri: pipeline holder is required")
	}
	if store == nil {
		panic("sri: episodic store is required")
	}
	if transformer == nil {
		transformer = agentcontext.NewTransformer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		holder:      holder,
		store:       store,
		transformer: transformer,
		now:         time.Now,
		logger:      logger.With(zap.String("component", "sri_pipeline")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OptimizeContext 对对话执行 Strip-Recall-Inject.
// OriginalTokens 按裁剪前的完整对话计算, 使压缩率反映裁剪与注入的综合效果;
// StrippedTokens 保留裁剪后、注入前的计数.
func (p *Pipeline) OptimizeContext(ctx context.Context, turns []types.Turn, taskID string, threshold float64) (types.SRIResult, error) {
	ctx, span := tracer.Start(ctx, "sri.optimize_context",
		trace.WithAttributes(
			attribute.String("sri.task_id", taskID),
			attribute.Int("sri.turns", len(turns)),
			attribute.Float64("sri.threshold", threshold)))
	defer span.End()

	result, err := p.optimize(ctx, "", turns, taskID, threshold)
	endSpan(span, result, err)
	return result, err
}

// OptimizeContextForAgent 与 OptimizeContext 相同, 但召回查询前缀 "Agent: {agentID}\n",
// 使与该 Agent 相关的记忆得分更高.
func (p *Pipeline) OptimizeContextForAgent(ctx context.Context, agentID string, turns []types.Turn, taskID string, threshold float64) (types.SRIResult, error) {
	ctx, span := tracer.Start(ctx, "sri.optimize_context_for_agent",
		trace.WithAttributes(
			attribute.String("sri.agent_id", agentID),
			attribute.String("sri.task_id", taskID),
			attribute.Int("sri.turns", len(turns)),
			attribute.Float64("sri.threshold", threshold)))
	defer span.End()

	if agentID == "" {
		err := types.NewInvalidRequestError("agent id is required")
		endSpan(span, types.SRIResult{}, err)
		return types.SRIResult{}, err
	}
	result, err := p.optimize(ctx, agentID, turns, taskID, threshold)
	endSpan(span, result, err)
	return result, err
}

func (p *Pipeline) optimize(ctx context.Context, agentID string, turns []types.Turn, taskID string, threshold float64) (types.SRIResult, error) {
	if err := validateTurns(turns); err != nil {
		return types.SRIResult{}, err
	}
	if err := validateThreshold(threshold); err != nil {
		return types.SRIResult{}, err
	}

	cfg := p.holder.Load()
	t := p.transformer

	// Strip
	stripped := t.Strip(turns, cfg.ContextWindow)
	text := t.Render(stripped)

	// Recall
	query := text
	if agentID != "" {
		query = "Agent: " + agentID + "\n" + text
	}
	recalls := p.store.Recall(ctx, query, threshold)

	// Inject
	result := t.Inject(text, recalls, threshold)
	result.OriginalTokens = t.EstimateTokens(t.Render(turns))
	result.ReductionPercentage = agentcontext.ReductionPercentage(result.OriginalTokens, result.OptimizedTokens)

	contextType := types.ContextSimple
	if len(turns) > cfg.ContextWindow {
		contextType = types.ContextComplex
	}
	if p.recorder != nil {
		p.recorder.Record(result, taskID, agentID, contextType)
	}

	p.logger.Debug("context optimized",
		zap.String("task_id", taskID),
		zap.String("agent_id", agentID),
		zap.Int("turns", len(turns)),
		zap.Int("kept_turns", len(stripped)),
		zap.Int("original_tokens", result.OriginalTokens),
		zap.Int("optimized_tokens", result.OptimizedTokens),
		zap.Int("reduction", result.ReductionPercentage),
		zap.String("memories", agentcontext.InjectionSummary(result.InjectedMemories)))
	return result, nil
}

// CalculateEmotionFromResult 将任务结果映射为情感向量, 时间戳取流水线时钟.
func (p *Pipeline) CalculateEmotionFromResult(result types.TaskResult) types.AffectiveVector {
	return EmotionFromResult(result, p.now())
}

// StoreExperience 把一次任务结果转为情景记忆.
// 强度低于阈值或被存储拒绝时返回 (nil, nil); 只有真正写入时才返回情感向量.
// ctx 中的 Agent ID (types.WithAgentID) 会记录在记忆上.
func (p *Pipeline) StoreExperience(ctx context.Context, taskID, contextText string, result types.TaskResult) (*types.AffectiveVector, error) {
	ctx, span := tracer.Start(ctx, "sri.store_experience",
		trace.WithAttributes(
			attribute.String("sri.task_id", taskID),
			attribute.Bool("sri.success", result.Success)))
	defer span.End()

	cfg := p.holder.Load()
	vector := p.CalculateEmotionFromResult(result)
	intensity := memory.Intensity(vector)
	span.SetAttributes(attribute.Float64("sri.intensity", intensity))

	if intensity < cfg.EmotionThreshold {
		p.logger.Debug("experience below emotion threshold",
			zap.String("task_id", taskID),
			zap.Float64("intensity", intensity),
			zap.Float64("threshold", cfg.EmotionThreshold))
		span.SetAttributes(attribute.Bool("sri.admitted", false))
		return nil, nil
	}

	fingerprint, err := memory.NewFingerprinter(cfg.HashLength).Fingerprint(vector)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	agentID, _ := types.AgentID(ctx)
	mem, err := p.store.Store(ctx, memory.StoreRequest{
		Fingerprint: fingerprint,
		Affect:      vector,
		Outcome:     outcomeOf(result),
		PolicyDelta: DerivePolicyDelta(contextText, result),
		Context:     contextText,
		TaskID:      taskID,
		AgentID:     agentID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("sri.admitted", mem != nil))
	if mem == nil {
		return nil, nil
	}

	p.logger.Info("experience stored",
		zap.String("task_id", taskID),
		zap.String("fingerprint", fingerprint),
		zap.String("policy_context", mem.PolicyDelta.Context),
		zap.String("outcome", string(mem.Outcome)))
	return &vector, nil
}

// MemoryStatsReport 是记忆统计与当前配置的组合视图.
type MemoryStatsReport struct {
	memory.MemoryStats
	Config config.PipelineConfig `json:"config"`
}

// MemoryStats 返回记忆统计, 不影响访问记录.
func (p *Pipeline) MemoryStats() MemoryStatsReport {
	return MemoryStatsReport{
		MemoryStats: p.store.Stats(),
		Config:      p.holder.Load(),
	}
}

// ClearMemories 清空情景记忆, 返回清除数量.
func (p *Pipeline) ClearMemories() int {
	n := p.store.Clear()
	p.logger.Info("episodic memories cleared", zap.Int("count", n))
	return n
}

// UpdateEffectiveness 根据反馈调整记忆的有效性评分.
func (p *Pipeline) UpdateEffectiveness(fingerprint string, helpful bool) error {
	return p.store.UpdateEffectiveness(fingerprint, helpful)
}

// ExportMemories 导出全部记忆.
func (p *Pipeline) ExportMemories() ([]byte, error) {
	return p.store.Export()
}

// ImportMemories 导入记忆, 返回写入数量.
func (p *Pipeline) ImportMemories(ctx context.Context, data []byte) (int, error) {
	ctx, span := tracer.Start(ctx, "sri.import_memories")
	defer span.End()

	n, err := p.store.Import(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("sri.imported", n))
	return n, nil
}

// Config 返回当前配置快照.
func (p *Pipeline) Config() config.PipelineConfig {
	return p.holder.Load()
}

func validateTurns(turns []types.Turn) error {
	if len(turns) == 0 {
		return types.NewInvalidRequestError("conversation must contain at least one turn")
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return types.NewInvalidRequestError("turn %d has unknown role %q", i, string(t.Role))
		}
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return types.NewInvalidRequestError("relevance threshold must be within [0,1], got %v", threshold)
	}
	return nil
}

func endSpan(span trace.Span, result types.SRIResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("sri.original_tokens", result.OriginalTokens),
		attribute.Int("sri.optimized_tokens", result.OptimizedTokens),
		attribute.Int("sri.reduction", result.ReductionPercentage),
		attribute.Int("sri.injected_memories", result.MemoryCount()))
}
