package memory

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/sriflow/testutil/fixtures"
	"github.com/BaSui01/sriflow/types"
)

func TestIntensity(t *testing.T) {
	t.Parallel()

	ts := fixtures.FixedTime
	assert.InDelta(t, 0, Intensity(fixtures.NeutralAffect(ts)), 1e-12)
	assert.InDelta(t, 0.385, Intensity(fixtures.FailureAffect(ts)), 0.001)
	assert.InDelta(t, math.Sqrt(0.62)/math.Sqrt(6), Intensity(fixtures.SuccessAffect(ts)), 1e-9)
	assert.InDelta(t, 0.841, Intensity(fixtures.HighIntensityAffect(ts)), 0.001)

	extreme := types.AffectiveVector{
		Valence: -1, Arousal: 1, Dominance: 0,
		Surprise: 1, Fear: 1, Joy: 1, Anger: 1, Sadness: 1, Disgust: 1,
	}
	assert.Equal(t, 1.0, Intensity(extreme), "clamped to 1")
}

func TestIntensity_ConfidenceIsIgnored(t *testing.T) {
	t.Parallel()

	v := fixtures.FailureAffect(fixtures.FixedTime)
	w := v
	w.Confidence = 1
	assert.Equal(t, Intensity(v), Intensity(w))
}

func TestOverlapScore(t *testing.T) {
	t.Parallel()

	m := &types.EpisodicMemory{
		Context:     "bitcoin investment advice",
		PolicyDelta: types.PolicyDelta{Context: "crypto"},
	}

	tests := []struct {
		query string
		want  float64
	}{
		{query: "should I buy bitcoin", want: 0.25},
		{query: "crypto bitcoin", want: 1},
		{query: "crypto", want: 2.0 / 3.0},
		{query: "CRYPTO", want: 2.0 / 3.0},
		{query: "logo design", want: 0},
		{query: "", want: 0},
		// 重复词元各自计分，归一化后截断到 1
		{query: "crypto crypto crypto bitcoin", want: 1},
	}
	for _, tt := range tests {
		got := OverlapScore(tokenize(tt.query), m)
		assert.InDelta(t, tt.want, got, 1e-9, "query %q", tt.query)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestDecayWeight(t *testing.T) {
	t.Parallel()

	now := fixtures.FixedTime
	assert.Equal(t, 1.0, DecayWeight(0.95, now, now))
	assert.Equal(t, 1.0, DecayWeight(0.95, now.Add(time.Hour), now), "future access")
	assert.InDelta(t, 0.95, DecayWeight(0.95, now.Add(-24*time.Hour), now), 1e-9)
	assert.InDelta(t, math.Pow(0.95, 10), DecayWeight(0.95, now.Add(-240*time.Hour), now), 1e-9)
	assert.Equal(t, 1.0, DecayWeight(1, now.Add(-1000*time.Hour), now))
}

func TestCompressedForm(t *testing.T) {
	t.Parallel()

	m := &types.EpisodicMemory{
		Outcome:     types.OutcomeFailure,
		PolicyDelta: fixtures.CryptoSafeguard(),
	}
	assert.Equal(t, "#mem: crypto-failed → Add safeguards and disclaimers for crypto", CompressedForm(m))

	m.Outcome = types.OutcomeSuccess
	assert.Equal(t, "#mem: crypto-succeeded → Add safeguards and disclaimers for crypto", CompressedForm(m))

	m.Outcome = types.OutcomePartial
	assert.Contains(t, CompressedForm(m), "crypto-partial →")
}

func TestInferDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "finance", InferDomain("Should I buy Bitcoin?"))
	assert.Equal(t, "finance", InferDomain("long-term investment plan"))
	assert.Equal(t, "design", InferDomain("Create a simple logo"))
	assert.Equal(t, "programming", InferDomain("review this code"))
	assert.Equal(t, "research", InferDomain("market analysis"))
	assert.Equal(t, DomainGeneral, InferDomain("hello there"))
	assert.Equal(t, DomainGeneral, InferDomain(""))
}
