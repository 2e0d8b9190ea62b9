package observability

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/testutil/fixtures"
	"github.com/BaSui01/sriflow/types"
)

// --- helpers ---

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCollector(t *testing.T, mutate func(*config.MetricsConfig), opts ...CollectorOption) (*TokenMetricsCollector, *manualClock) {
	t.Helper()
	cfg := config.DefaultMetricsConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := &manualClock{now: fixtures.FixedTime}
	opts = append([]CollectorOption{WithClock(clock.Now)}, opts...)
	return NewTokenMetricsCollector(cfg, nil, opts...), clock
}

func result(original, optimized, memories int) types.SRIResult {
	recalls := make([]types.MemoryRecall, memories)
	for i := range recalls {
		recalls[i] = types.MemoryRecall{Fingerprint: fmt.Sprintf("m%d", i), Relevance: 0.9}
	}
	reduction := 0
	if original > 0 {
		reduction = int(math.Floor(float64(original-optimized)/float64(original)*100 + 0.5))
	}
	return types.SRIResult{
		OriginalTokens:      original,
		OptimizedTokens:     optimized,
		ReductionPercentage: reduction,
		InjectedMemories:    recalls,
	}
}

func alertTypes(alerts []types.Alert) map[string]types.AlertSeverity {
	out := map[string]types.AlertSeverity{}
	for _, a := range alerts {
		out[a.Type] = a.Severity
	}
	return out
}

// --- tests ---

func TestTokenMetricsCollector_Record(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, nil)
	s := c.Record(result(1000, 400, 2), "task-1", "agent-a", types.ContextComplex)

	assert.Equal(t, fixtures.FixedTime, s.Timestamp)
	assert.Equal(t, 60, s.ReductionPercentage)
	assert.Equal(t, 600, s.TokensSaved)
	assert.Equal(t, 2, s.InjectedMemories)
	assert.Equal(t, types.ContextComplex, s.ContextType)
	assert.Equal(t, 1, c.Len())

	s = c.Record(result(10, 10, 0), "task-2", "", "")
	assert.Equal(t, types.ContextSimple, s.ContextType, "defaults to simple")
}

func TestTokenMetricsCollector_BoundedOldestEvicted(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.MaxSamples = 3 })
	for i := 0; i < 5; i++ {
		c.Record(result(100, 50, 0), fmt.Sprintf("task-%d", i), "", types.ContextSimple)
	}

	require.Equal(t, 3, c.Len())
	data, err := c.Export()
	require.NoError(t, err)

	var samples []types.TokenMetricSample
	require.NoError(t, json.Unmarshal(data, &samples))
	require.Len(t, samples, 3)
	assert.Equal(t, "task-2", samples[0].TaskID)
	assert.Equal(t, "task-4", samples[2].TaskID)
}

func TestTokenMetricsCollector_PerformanceMetrics_Empty(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, nil)
	summary := c.PerformanceMetrics()
	assert.Zero(t, summary.TotalOptimizations)
	assert.Zero(t, summary.AverageReduction)
	assert.Empty(t, summary.TopPerformingAgents)
	assert.Empty(t, summary.HourlyStats)
}

func TestTokenMetricsCollector_PerformanceMetrics(t *testing.T) {
	t.Parallel()

	c, clock := newCollector(t, nil)
	c.Record(result(1000, 200, 2), "t1", "agent-a", types.ContextSimple) // 80
	c.Record(result(1000, 600, 0), "t2", "agent-b", types.ContextSimple) // 40
	clock.Advance(2 * time.Hour)
	c.Record(result(1000, 400, 1), "t3", "agent-a", types.ContextSimple) // 60
	c.Record(result(100, 120, 0), "t4", "", types.ContextSimple)         // -20

	summary := c.PerformanceMetrics()
	assert.Equal(t, 4, summary.TotalOptimizations)
	assert.InDelta(t, 40.0, summary.AverageReduction, 1e-9)
	assert.Equal(t, 800+400+600-20, summary.TotalTokensSaved)
	assert.InDelta(t, 0.75, summary.AverageMemoriesInjected, 1e-9)

	require.Len(t, summary.TopPerformingAgents, 2)
	assert.Equal(t, "agent-a", summary.TopPerformingAgents[0].AgentID)
	assert.Equal(t, 2, summary.TopPerformingAgents[0].Optimizations)
	assert.InDelta(t, 70.0, summary.TopPerformingAgents[0].AverageReduction, 1e-9)
	assert.Equal(t, "agent-b", summary.TopPerformingAgents[1].AgentID)

	require.Len(t, summary.HourlyStats, 24)
	last := summary.HourlyStats[23]
	assert.Equal(t, "2026-01-01T14:00", last.Hour)
	assert.Equal(t, 2, last.Optimizations)
	assert.InDelta(t, 20.0, last.AverageReduction, 1e-9)

	twoHoursAgo := summary.HourlyStats[21]
	assert.Equal(t, "2026-01-01T12:00", twoHoursAgo.Hour)
	assert.Equal(t, 2, twoHoursAgo.Optimizations)
	assert.InDelta(t, 60.0, twoHoursAgo.AverageReduction, 1e-9)
	assert.Zero(t, summary.HourlyStats[22].Optimizations)
}

func TestTokenMetricsCollector_HourlyDropsOldSamples(t *testing.T) {
	t.Parallel()

	c, clock := newCollector(t, nil)
	c.Record(result(100, 50, 0), "old", "", types.ContextSimple)
	clock.Advance(25 * time.Hour)

	summary := c.PerformanceMetrics()
	assert.Equal(t, 1, summary.TotalOptimizations)
	total := 0
	for _, h := range summary.HourlyStats {
		total += h.Optimizations
	}
	assert.Zero(t, total)
}

func TestTokenMetricsCollector_TopAgentsLimit(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, nil)
	for i := 0; i < 8; i++ {
		c.Record(result(100, 100-i*10, 0), "t", fmt.Sprintf("agent-%d", i), types.ContextSimple)
	}
	top := c.PerformanceMetrics().TopPerformingAgents
	require.Len(t, top, 5)
	assert.Equal(t, "agent-7", top[0].AgentID)
	assert.Equal(t, "agent-3", top[4].AgentID)
}

func TestTokenMetricsCollector_Alerts_BelowMinimum(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, nil)
	for i := 0; i < 9; i++ {
		c.Record(result(100, 100, 0), "t", "", types.ContextSimple)
	}
	assert.Empty(t, c.Alerts())
}

// 100 个样本，平均压缩率 15%，无记忆注入
func TestTokenMetricsCollector_Alerts_NoMemories(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.NoMemoriesReductionPercent = 20 })
	for i := 0; i < 100; i++ {
		c.Record(types.SRIResult{
			OriginalTokens:      200,
			OptimizedTokens:     170,
			ReductionPercentage: 15,
		}, fmt.Sprintf("t%d", i), "agent", types.ContextSimple)
	}

	got := alertTypes(c.Alerts())
	assert.Equal(t, types.SeverityHigh, got[types.AlertNoMemories])
	assert.Equal(t, types.SeverityMedium, got[types.AlertLowReduction])
	assert.Equal(t, types.SeverityLow, got[types.AlertLowSavings])
}

func TestTokenMetricsCollector_Alerts_Healthy(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, nil)
	for i := 0; i < 20; i++ {
		c.Record(result(1000, 300, 1), "t", "", types.ContextSimple)
	}
	assert.Empty(t, c.Alerts())
}

func TestTokenMetricsCollector_Alerts_UsesRecentWindow(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.AlertWindow = 10 })
	for i := 0; i < 50; i++ {
		c.Record(result(100, 100, 0), "bad", "", types.ContextSimple)
	}
	for i := 0; i < 10; i++ {
		c.Record(result(1000, 200, 2), "good", "", types.ContextSimple)
	}
	assert.Empty(t, c.Alerts(), "older samples fall outside the window")
}

func TestTokenMetricsCollector_Alerts_ConfigurableBound(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.NoMemoriesReductionPercent = 10 })
	for i := 0; i < 10; i++ {
		c.Record(types.SRIResult{OriginalTokens: 100, OptimizedTokens: 85, ReductionPercentage: 15}, "t", "", types.ContextSimple)
	}
	_, ok := alertTypes(c.Alerts())[types.AlertNoMemories]
	assert.False(t, ok, "15 percent is above a bound of 10")

	strict, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.NoMemoriesReductionPercent = 10 })
	for i := 0; i < 10; i++ {
		strict.Record(types.SRIResult{OriginalTokens: 100, OptimizedTokens: 95, ReductionPercentage: 5}, "t", "", types.ContextSimple)
	}
	assert.Equal(t, types.SeverityHigh, alertTypes(strict.Alerts())[types.AlertNoMemories])
}

func TestTokenMetricsCollector_Queries(t *testing.T) {
	t.Parallel()

	c, clock := newCollector(t, nil)
	c.Record(result(100, 50, 0), "t1", "agent-a", types.ContextSimple)
	clock.Advance(time.Hour)
	c.Record(result(100, 50, 0), "t2", "agent-b", types.ContextSimple)
	clock.Advance(time.Hour)
	c.Record(result(100, 50, 0), "t3", "agent-a", types.ContextSimple)

	a := c.AgentMetrics("agent-a")
	require.Len(t, a, 2)
	assert.Equal(t, "t3", a[1].TaskID)
	assert.Empty(t, c.AgentMetrics("missing"))

	start := fixtures.FixedTime.Add(time.Hour)
	inRange := c.MetricsForRange(start, start.Add(time.Hour))
	require.Len(t, inRange, 2, "range is inclusive at both ends")
	assert.Equal(t, "t2", inRange[0].TaskID)

	assert.Equal(t, 3, c.Clear())
	assert.Zero(t, c.Len())
	assert.Empty(t, c.AgentMetrics("agent-a"))
}

func TestTokenMetricsCollector_Sink(t *testing.T) {
	t.Parallel()

	var got []types.TokenMetricSample
	sink := SinkFunc(func(s types.TokenMetricSample) { got = append(got, s) })
	c, _ := newCollector(t, nil, WithSink(sink), WithSink(nil))

	c.Record(result(100, 40, 1), "t1", "agent-a", types.ContextComplex)
	require.Len(t, got, 1)
	assert.Equal(t, 60, got[0].TokensSaved)
	assert.Equal(t, "agent-a", got[0].AgentID)
}

func TestTokenMetricsCollector_ZeroConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	c := NewTokenMetricsCollector(config.MetricsConfig{}, nil)
	for i := 0; i < 10; i++ {
		c.Record(types.SRIResult{OriginalTokens: 100, OptimizedTokens: 100}, "t", "", types.ContextSimple)
	}
	assert.Len(t, c.Alerts(), 3)
}

func TestTokenMetricsCollector_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	c, _ := newCollector(t, func(cfg *config.MetricsConfig) { cfg.MaxSamples = 50 })
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				c.Record(result(100, 50, 0), "t", fmt.Sprintf("agent-%d", g), types.ContextSimple)
				_ = c.PerformanceMetrics()
				_ = c.Alerts()
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
