package sri

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcontext "github.com/BaSui01/sriflow/agent/context"
	"github.com/BaSui01/sriflow/agent/memory"
	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/testutil/fixtures"
	"github.com/BaSui01/sriflow/types"
)

type recordedCall struct {
	result      types.SRIResult
	taskID      string
	agentID     string
	contextType types.ContextType
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) Record(result types.SRIResult, taskID, agentID string, contextType types.ContextType) types.TokenMetricSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{result, taskID, agentID, contextType})
	return types.TokenMetricSample{TaskID: taskID, AgentID: agentID, ContextType: contextType}
}

type testEnv struct {
	holder   *config.PipelineHolder
	store    *memory.EpisodicStore
	pipeline *Pipeline
	recorder *fakeRecorder
}

// newTestEnv 构建一条使用固定时钟的流水线。阈值 0.3 让成功和失败的经验都能入库
func newTestEnv(t *testing.T, mutate func(*config.PipelineConfig)) *testEnv {
	t.Helper()

	cfg := config.DefaultPipelineConfig()
	cfg.EmotionThreshold = 0.3
	if mutate != nil {
		mutate(&cfg)
	}
	holder, err := config.NewPipelineHolder(cfg)
	require.NoError(t, err)

	now := func() time.Time { return fixtures.FixedTime }
	store := memory.NewEpisodicStore(holder, memory.EpisodicStoreConfig{Now: now}, nil)
	recorder := &fakeRecorder{}
	p := NewPipeline(holder, store, agentcontext.NewTransformer(nil), nil,
		WithRecorder(recorder), WithClock(now))
	return &testEnv{holder: holder, store: store, pipeline: p, recorder: recorder}
}

func conversationLines(ctx string) []string {
	var lines []string
	for _, line := range strings.Split(ctx, "\n") {
		if strings.HasPrefix(line, "user:") || strings.HasPrefix(line, "assistant:") || strings.HasPrefix(line, "system:") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	holder := config.MustPipelineHolder(config.DefaultPipelineConfig())
	store := memory.NewEpisodicStore(holder, memory.EpisodicStoreConfig{}, nil)

	assert.Panics(t, func() { NewPipeline(nil, store, nil, nil) })
	assert.Panics(t, func() { NewPipeline(holder, nil, nil, nil) })
	assert.NotPanics(t, func() { NewPipeline(holder, store, nil, nil) })
}

// 超出窗口的对话只保留最近的轮次
func TestOptimizeContext_StripsToWindow(t *testing.T) {
	env := newTestEnv(t, func(c *config.PipelineConfig) { c.ContextWindow = 3 })

	res, err := env.pipeline.OptimizeContext(context.Background(), fixtures.Conversation(5), "task-1", DefaultRelevanceThreshold)
	require.NoError(t, err)

	lines := conversationLines(res.Context)
	assert.LessOrEqual(t, len(lines), 3)
	assert.Equal(t, []string{"user: question 2", "assistant: answer 3", "user: question 4"}, lines)
	assert.Empty(t, res.InjectedMemories)
	assert.NotContains(t, res.Context, agentcontext.MemoryHeader)

	full := agentcontext.NewTransformer(nil).Render(fixtures.Conversation(5))
	assert.Equal(t, agentcontext.NewTransformer(nil).EstimateTokens(full), res.OriginalTokens)
	stripped := agentcontext.NewTransformer(nil).Render(fixtures.Conversation(5)[2:])
	assert.Equal(t, agentcontext.NewTransformer(nil).EstimateTokens(stripped), res.StrippedTokens)
	assert.Less(t, res.StrippedTokens, res.OriginalTokens)
	assert.Less(t, res.OptimizedTokens, res.OriginalTokens)
	assert.Greater(t, res.ReductionPercentage, 0)
	assert.Equal(t, agentcontext.ReductionPercentage(res.OriginalTokens, res.OptimizedTokens), res.ReductionPercentage)

	require.Len(t, env.recorder.calls, 1)
	call := env.recorder.calls[0]
	assert.Equal(t, "task-1", call.taskID)
	assert.Empty(t, call.agentID)
	assert.Equal(t, types.ContextComplex, call.contextType)
}

func TestOptimizeContext_ShortConversationIsSimple(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.pipeline.OptimizeContext(context.Background(), fixtures.Conversation(2), "task-2", DefaultRelevanceThreshold)
	require.NoError(t, err)

	assert.Equal(t, "user: question 0\nassistant: answer 1", res.Context)
	assert.Equal(t, 0, res.ReductionPercentage)
	assert.Equal(t, res.OriginalTokens, res.StrippedTokens)
	require.Len(t, env.recorder.calls, 1)
	assert.Equal(t, types.ContextSimple, env.recorder.calls[0].contextType)
}

func TestOptimizeContext_InvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.pipeline.OptimizeContext(ctx, nil, "t", 0.5)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = env.pipeline.OptimizeContext(ctx, []types.Turn{{Role: "robot", Content: "beep"}}, "t", 0.5)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	for _, threshold := range []float64{-0.1, 1.1, math.NaN()} {
		_, err = env.pipeline.OptimizeContext(ctx, fixtures.Conversation(2), "t", threshold)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest), "threshold %v", threshold)
	}

	_, err = env.pipeline.OptimizeContextForAgent(ctx, "", fixtures.Conversation(2), "t", 0.5)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	assert.Empty(t, env.recorder.calls, "rejected requests are not recorded")
}

func TestStoreExperience_BelowThreshold(t *testing.T) {
	env := newTestEnv(t, func(c *config.PipelineConfig) { c.EmotionThreshold = 0.7 })

	v, err := env.pipeline.StoreExperience(context.Background(), "t1", "Should I buy Bitcoin?", types.TaskResult{Success: false})
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 0, env.store.Count())
}

func TestStoreExperience_AdmitsAndRecordsAgent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := types.WithAgentID(context.Background(), "advisor")

	v, err := env.pipeline.StoreExperience(ctx, "t1", "Should I buy Bitcoin?", types.TaskResult{Success: false, Error: "unsafe advice"})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, fixtures.FailureAffect(fixtures.FixedTime), *v)

	memories := env.store.Snapshot()
	require.Len(t, memories, 1)
	m := memories[0]
	assert.Equal(t, "advisor", m.AgentID)
	assert.Equal(t, "t1", m.TaskID)
	assert.Equal(t, types.OutcomeFailure, m.Outcome)
	assert.Equal(t, fixtures.CryptoSafeguard(), m.PolicyDelta)

	fp, err := memory.NewFingerprinter(env.holder.Load().HashLength).Fingerprint(*v)
	require.NoError(t, err)
	assert.Equal(t, fp, m.Fingerprint)
}

// 失败经验入库后，相关的新对话会注入对应的防护策略
func TestStoreThenRecall_InjectsSafeguard(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.pipeline.StoreExperience(ctx, "t1", "Should I invest in altcoin", types.TaskResult{Success: false})
	require.NoError(t, err)

	turns := []types.Turn{types.UserTurn("altcoin")}
	res, err := env.pipeline.OptimizeContext(ctx, turns, "t2", 0.5)
	require.NoError(t, err)

	require.Len(t, res.InjectedMemories, 1)
	assert.InDelta(t, 0.6, res.InjectedMemories[0].Relevance, 1e-9)
	assert.Equal(t,
		"user: altcoin\n\n"+agentcontext.MemoryHeader+"\n#mem: altcoin-failed → Add safeguards and disclaimers for altcoin",
		res.Context)
	assert.Greater(t, res.OptimizedTokens, res.OriginalTokens)
	assert.Less(t, res.ReductionPercentage, 0)

	stats := env.pipeline.MemoryStats()
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 1, stats.TotalAccesses)
	assert.Equal(t, env.holder.Load(), stats.Config)
}

func TestOptimizeContextForAgent_PrefixesQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 记忆上下文中含有 agent 名，使前缀影响相关度
	_, err := env.pipeline.StoreExperience(ctx, "t1", "advisor bitcoin tips today", types.TaskResult{Success: false})
	require.NoError(t, err)

	turns := []types.Turn{types.UserTurn("bitcoin")}

	// 查询词元: user:, bitcoin → 1/4
	plain, err := env.pipeline.OptimizeContext(ctx, turns, "t2", 0.5)
	require.NoError(t, err)
	assert.Empty(t, plain.InjectedMemories)

	// 查询词元: agent:, advisor, user:, bitcoin → 2/4
	agent, err := env.pipeline.OptimizeContextForAgent(ctx, "advisor", turns, "t3", 0.5)
	require.NoError(t, err)
	require.Len(t, agent.InjectedMemories, 1)
	assert.InDelta(t, 0.5, agent.InjectedMemories[0].Relevance, 1e-9)
	assert.NotContains(t, agent.Context, "Agent: advisor", "the prefix only shapes the query")

	require.Len(t, env.recorder.calls, 2)
	assert.Equal(t, "advisor", env.recorder.calls[1].agentID)
}

func TestPipeline_MemoryManagement(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	v, err := env.pipeline.StoreExperience(ctx, "t1", "review this code", types.TaskResult{Success: true})
	require.NoError(t, err)
	require.NotNil(t, v)
	fp := env.store.Snapshot()[0].Fingerprint

	require.NoError(t, env.pipeline.UpdateEffectiveness(fp, true))
	assert.ErrorIs(t, env.pipeline.UpdateEffectiveness("missing", true), memory.ErrMemoryNotFound)

	data, err := env.pipeline.ExportMemories()
	require.NoError(t, err)

	assert.Equal(t, 1, env.pipeline.ClearMemories())
	assert.Equal(t, 0, env.store.Count())

	n, err := env.pipeline.ImportMemories(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, env.store.Count())

	_, err = env.pipeline.ImportMemories(ctx, []byte("not json"))
	assert.ErrorIs(t, err, memory.ErrInvalidSnapshot)
}

func TestPipeline_ReadsConfigPerCall(t *testing.T) {
	env := newTestEnv(t, func(c *config.PipelineConfig) { c.ContextWindow = 5 })
	ctx := context.Background()

	res, err := env.pipeline.OptimizeContext(ctx, fixtures.Conversation(5), "t", 0.7)
	require.NoError(t, err)
	assert.Len(t, conversationLines(res.Context), 5)

	next := env.holder.Load()
	next.ContextWindow = 2
	require.NoError(t, env.holder.Apply(next, "test"))

	res, err = env.pipeline.OptimizeContext(ctx, fixtures.Conversation(5), "t", 0.7)
	require.NoError(t, err)
	assert.Len(t, conversationLines(res.Context), 2)
	assert.Equal(t, 2, env.pipeline.Config().ContextWindow)
}
