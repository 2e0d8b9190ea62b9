package memory

import (
	"math"
	"strings"
	"time"

	"github.com/BaSui01/sriflow/types"
)

// tokenize lowercases s and splits it on whitespace.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// OverlapScore scores how well query tokens cover a memory: one point per
// query token found in the memory's context and two more if it also names
// the policy context. The sum is normalized by the longer of the two token
// lists and capped at 1.
func OverlapScore(queryTokens []string, m *types.EpisodicMemory) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	contextTokens := tokenize(m.Context)
	inContext := tokenSet(contextTokens)
	inPolicy := tokenSet(tokenize(m.PolicyDelta.Context))

	score := 0
	for _, tok := range queryTokens {
		if _, ok := inContext[tok]; ok {
			score++
		}
		if _, ok := inPolicy[tok]; ok {
			score += 2
		}
	}

	denom := max(len(queryTokens), len(contextTokens))
	return math.Min(1, float64(score)/float64(denom))
}

// DecayWeight is the exponential staleness factor decay^days, where days is
// the time since the memory was last touched. Future timestamps count as 0.
func DecayWeight(decay float64, lastAccessed, now time.Time) float64 {
	if decay >= 1 {
		return 1
	}
	days := now.Sub(lastAccessed).Hours() / 24
	if days <= 0 {
		return 1
	}
	return math.Pow(decay, days)
}

// CompressedForm renders the single-line injection for a memory:
//
//	#mem: {policy context}-{outcome word} → {policy description}
func CompressedForm(m *types.EpisodicMemory) string {
	return "#mem: " + m.PolicyDelta.Context + "-" + m.Outcome.Word() + " → " + m.PolicyDelta.Description
}
