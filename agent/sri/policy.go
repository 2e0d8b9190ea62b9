package sri

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/BaSui01/sriflow/types"
)

// defaultConfidence 在任务结果未携带 confidence 时使用.
const defaultConfidence = 0.5

// PolicyContextGeneral 是未命中任何关键词时的策略上下文.
const PolicyContextGeneral = "general"

// Policy actions.
const (
	ActionReinforceApproach = "reinforce_approach"
	ActionAddSafeguard      = "add_safeguard"
)

// policyKeywords 按顺序匹配, 第一个命中的关键词决定策略上下文.
var policyKeywords = []struct {
	keyword string
	context string
}{
	{"altcoin", "altcoin"},
	{"cryptocurrency", "crypto"},
	{"bitcoin", "crypto"},
	{"investment", "financial_advice"},
	{"financial", "financial_advice"},
	{"money", "financial_advice"},
	{"design", "design"},
	{"logo", "design"},
	{"image", "design"},
	{"code", "programming"},
	{"programming", "programming"},
	{"development", "programming"},
}

// EmotionFromResult 将任务结果映射为固定的情感向量.
// 成功: valence=0.7 arousal=0.3 dominance=0.8; 失败: valence=-0.8 arousal=0.9 dominance=0.2.
// confidence 取自 Metadata["confidence"], 缺省 0.5; 其余维度为 0.
func EmotionFromResult(result types.TaskResult, ts time.Time) types.AffectiveVector {
	v := types.AffectiveVector{
		Confidence: confidenceOf(result.Metadata),
		Timestamp:  ts,
	}
	if result.Success {
		v.Valence, v.Arousal, v.Dominance = 0.7, 0.3, 0.8
	} else {
		v.Valence, v.Arousal, v.Dominance = -0.8, 0.9, 0.2
	}
	return v
}

func confidenceOf(metadata map[string]any) float64 {
	raw, ok := metadata["confidence"]
	if !ok {
		return defaultConfidence
	}

	var f float64
	switch c := raw.(type) {
	case float64:
		f = c
	case float32:
		f = float64(c)
	case int:
		f = float64(c)
	case int64:
		f = float64(c)
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultConfidence
	}
	return math.Max(0, math.Min(1, f))
}

// PolicyContext 从任务上下文中提取策略上下文关键词.
func PolicyContext(contextText string) string {
	lower := strings.ToLower(contextText)
	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.context
		}
	}
	return PolicyContextGeneral
}

// DerivePolicyDelta 根据任务上下文与结果生成策略调整.
func DerivePolicyDelta(contextText string, result types.TaskResult) types.PolicyDelta {
	ctx := PolicyContext(contextText)
	if result.Success {
		return types.PolicyDelta{
			Action:      ActionReinforceApproach,
			Context:     ctx,
			Impact:      0.7,
			Description: "Continue using successful approach for " + ctx,
		}
	}
	return types.PolicyDelta{
		Action:      ActionAddSafeguard,
		Context:     ctx,
		Impact:      0.8,
		Description: "Add safeguards and disclaimers for " + ctx,
	}
}

func outcomeOf(result types.TaskResult) types.Outcome {
	if result.Success {
		return types.OutcomeSuccess
	}
	return types.OutcomeFailure
}
