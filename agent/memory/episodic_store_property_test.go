package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/testutil/fixtures"
	"github.com/BaSui01/sriflow/types"
)

var propertyWords = []string{"bitcoin", "crypto", "logo", "design", "code", "analysis", "market", "risk"}

func drawContext(rt *rapid.T, label string) string {
	n := rapid.IntRange(1, 5).Draw(rt, label+"_len")
	words := make([]string, n)
	for i := range words {
		words[i] = rapid.SampledFrom(propertyWords).Draw(rt, fmt.Sprintf("%s_%d", label, i))
	}
	return strings.Join(words, " ")
}

// TestProperty_EpisodicStore_CapacityAndLRU 任意操作序列之后容量不变式成立，
// 且被淘汰的恰好是 lastAccessed 最小的记忆
func TestProperty_EpisodicStore_CapacityAndLRU(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxMemories := rapid.IntRange(1, 8).Draw(rt, "maxMemories")
		cfg := config.DefaultPipelineConfig()
		cfg.MaxMemories = maxMemories
		holder := config.MustPipelineHolder(cfg)

		clock := &testClock{now: fixtures.FixedTime}
		store := NewEpisodicStore(holder, EpisodicStoreConfig{Now: clock.Now}, nil)
		ctx := context.Background()

		// 模型：指纹 → 最近访问时间
		model := map[string]time.Time{}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			clock.Advance(time.Second)
			fp := fmt.Sprintf("fp%02d", rapid.IntRange(0, 15).Draw(rt, "fp"))

			if rapid.Bool().Draw(rt, "touch") {
				if _, ok := store.GetByFingerprint(fp); ok {
					model[fp] = clock.Now()
				}
				continue
			}

			_, err := store.Store(ctx, StoreRequest{
				Fingerprint: fp,
				Affect:      fixtures.HighIntensityAffect(fixtures.FixedTime),
				Outcome:     types.OutcomeSuccess,
				Context:     "ctx",
			})
			require.NoError(rt, err)
			model[fp] = clock.Now()

			if len(model) > maxMemories {
				type kv struct {
					fp string
					at time.Time
				}
				all := make([]kv, 0, len(model))
				for k, v := range model {
					all = append(all, kv{k, v})
				}
				sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
				for _, e := range all[:len(model)-maxMemories] {
					delete(model, e.fp)
				}
			}

			require.LessOrEqual(rt, store.Count(), maxMemories)
		}

		assert.Equal(rt, len(model), store.Count())
		for _, m := range store.Snapshot() {
			_, ok := model[m.Fingerprint]
			assert.True(rt, ok, "unexpected survivor %s", m.Fingerprint)
		}
	})
}

// TestProperty_EpisodicStore_RecallCorrectness 召回结果全部达到阈值、按相关度非增排序，
// 且只触碰返回的记忆
func TestProperty_EpisodicStore_RecallCorrectness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		holder := config.MustPipelineHolder(config.DefaultPipelineConfig())
		clock := &testClock{now: fixtures.FixedTime}
		store := NewEpisodicStore(holder, EpisodicStoreConfig{Now: clock.Now}, nil)
		ctx := context.Background()

		n := rapid.IntRange(0, 10).Draw(rt, "n")
		for i := 0; i < n; i++ {
			_, err := store.Store(ctx, StoreRequest{
				Fingerprint: fmt.Sprintf("m%d", i),
				Affect:      fixtures.HighIntensityAffect(fixtures.FixedTime),
				Outcome:     types.OutcomeFailure,
				PolicyDelta: types.PolicyDelta{Context: rapid.SampledFrom(propertyWords).Draw(rt, "pd")},
				Context:     drawContext(rt, fmt.Sprintf("ctx%d", i)),
			})
			require.NoError(rt, err)
		}

		before := map[string]int{}
		for _, m := range store.Snapshot() {
			before[m.Fingerprint] = m.AccessCount
		}

		clock.Advance(time.Minute)
		threshold := rapid.Float64Range(0, 1).Draw(rt, "threshold")
		recalls := store.Recall(ctx, drawContext(rt, "query"), threshold)

		returned := map[string]bool{}
		for i, r := range recalls {
			assert.GreaterOrEqual(rt, r.Relevance, threshold)
			assert.LessOrEqual(rt, r.Relevance, 1.0)
			if i > 0 {
				assert.GreaterOrEqual(rt, recalls[i-1].Relevance, r.Relevance)
			}
			returned[r.Fingerprint] = true
		}

		for _, m := range store.Snapshot() {
			if returned[m.Fingerprint] {
				assert.Equal(rt, before[m.Fingerprint]+1, m.AccessCount)
				assert.Equal(rt, clock.Now(), m.LastAccessed)
			} else {
				assert.Equal(rt, before[m.Fingerprint], m.AccessCount)
			}
		}
	})
}
