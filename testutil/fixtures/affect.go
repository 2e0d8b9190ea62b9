// =============================================================================
// 📦 测试数据工厂 - 情感向量与记忆
// =============================================================================
// 提供预定义的情感向量、记忆与对话，用于测试
// =============================================================================
package fixtures

import (
	"fmt"
	"time"

	"github.com/BaSui01/sriflow/types"
)

// FixedTime 测试统一使用的起始时间
var FixedTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// 🎯 情感向量工厂
// =============================================================================

// HighIntensityAffect 返回强度约 0.84 的负面高唤醒向量
func HighIntensityAffect(ts time.Time) types.AffectiveVector {
	return types.AffectiveVector{
		Valence:    -0.9,
		Arousal:    0.95,
		Dominance:  0.1,
		Confidence: 0.5,
		Surprise:   0.8,
		Fear:       0.9,
		Anger:      0.9,
		Sadness:    0.9,
		Timestamp:  ts,
	}
}

// NeutralAffect 返回强度为 0 的中性向量
func NeutralAffect(ts time.Time) types.AffectiveVector {
	return types.AffectiveVector{
		Arousal:    0.5,
		Dominance:  0.5,
		Confidence: 0.5,
		Timestamp:  ts,
	}
}

// FailureAffect 返回任务失败时的固定向量（强度约 0.385）
func FailureAffect(ts time.Time) types.AffectiveVector {
	return types.AffectiveVector{Valence: -0.8, Arousal: 0.9, Dominance: 0.2, Confidence: 0.5, Timestamp: ts}
}

// SuccessAffect 返回任务成功时的固定向量（强度约 0.32）
func SuccessAffect(ts time.Time) types.AffectiveVector {
	return types.AffectiveVector{Valence: 0.7, Arousal: 0.3, Dominance: 0.8, Confidence: 0.5, Timestamp: ts}
}

// =============================================================================
// 🧠 策略与对话工厂
// =============================================================================

// CryptoSafeguard 返回加密货币场景的防护策略
func CryptoSafeguard() types.PolicyDelta {
	return types.PolicyDelta{
		Action:      "add_safeguard",
		Context:     "crypto",
		Impact:      0.8,
		Description: "Add safeguards and disclaimers for crypto",
	}
}

// Conversation 返回 n 轮交替的 user/assistant 对话
func Conversation(n int) []types.Turn {
	turns := make([]types.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			turns = append(turns, types.UserTurn(fmt.Sprintf("question %d", i)))
		} else {
			turns = append(turns, types.AssistantTurn(fmt.Sprintf("answer %d", i)))
		}
	}
	return turns
}
