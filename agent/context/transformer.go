package context

import (
	"math"
	"regexp"
	"strings"

	"github.com/BaSui01/sriflow/llm/tokenizer"
	"github.com/BaSui01/sriflow/types"
)

// MemoryHeader 是注入记忆块的标题行.
const MemoryHeader = "## Relevant Memories:"

var roleLinePattern = regexp.MustCompile(`^(user|assistant|system):\s*(.*)$`)

// Transformer 负责 Strip 与 Inject 两个文本阶段: 裁剪对话窗口,
// 在对话之后追加相关记忆, 并按同一个计数器统计前后的 token 数.
// 无内部状态, 可并发使用.
type Transformer struct {
	counter types.TokenCounter
}

// NewTransformer 创建转换器. counter 为 nil 时使用 ceil(字符数/4) 估算器.
func NewTransformer(counter types.TokenCounter) *Transformer {
	if counter == nil {
		counter = tokenizer.NewCharEstimator()
	}
	return &Transformer{counter: counter}
}

// Strip 保留最后 window 个 turn.
// 长度不超过 window 时原样返回副本; window <= 0 视为不裁剪.
func (t *Transformer) Strip(turns []types.Turn, window int) []types.Turn {
	if window <= 0 || len(turns) <= window {
		return append([]types.Turn(nil), turns...)
	}
	return append([]types.Turn(nil), turns[len(turns)-window:]...)
}

// Render 将 turns 渲染为 "role: content" 行, 以换行连接.
func (t *Transformer) Render(turns []types.Turn) string {
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
	}
	return sb.String()
}

// Parse 将 "role: content" 行形式的文本解析回 turns.
// 空行被跳过; 非角色行作为上一个 turn 的续行; 首个角色行之前的内容被丢弃.
// 没有任何角色行时返回 nil.
func (t *Transformer) Parse(raw string) []types.Turn {
	var (
		turns   []types.Turn
		current *types.Turn
	)
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := roleLinePattern.FindStringSubmatch(trimmed); m != nil {
			if current != nil {
				turns = append(turns, *current)
			}
			current = &types.Turn{Role: types.Role(m[1]), Content: m[2]}
			continue
		}
		if current != nil {
			current.Content += "\n" + trimmed
		}
	}
	if current != nil {
		turns = append(turns, *current)
	}
	return turns
}

// Inject 过滤出 relevance >= threshold 的记忆, 将其压缩形式追加在对话之后.
// 压缩形式不是单行合法记忆行的召回 (如描述为空或含换行) 不注入.
// raw 不是角色行形式时作为单个 user turn 处理.
// OriginalTokens 与 StrippedTokens 按 raw 计算, OptimizedTokens 按最终上下文计算.
func (t *Transformer) Inject(raw string, recalls []types.MemoryRecall, threshold float64) types.SRIResult {
	kept := make([]types.MemoryRecall, 0, len(recalls))
	for _, r := range recalls {
		if r.Relevance >= threshold && ValidateMemoryLine(r.CompressedForm) {
			kept = append(kept, r)
		}
	}

	turns := t.Parse(raw)
	if len(turns) == 0 {
		turns = []types.Turn{types.UserTurn(raw)}
	}

	final := t.format(turns, kept)
	original := t.EstimateTokens(raw)
	optimized := t.EstimateTokens(final)

	return types.SRIResult{
		OriginalTokens:      original,
		StrippedTokens:      original,
		OptimizedTokens:     optimized,
		ReductionPercentage: ReductionPercentage(original, optimized),
		InjectedMemories:    kept,
		Context:             final,
	}
}

func (t *Transformer) format(turns []types.Turn, recalls []types.MemoryRecall) string {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteByte('\n')
	}
	if len(recalls) > 0 {
		sb.WriteString("\n" + MemoryHeader + "\n")
		for _, r := range recalls {
			sb.WriteString(r.CompressedForm)
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// EstimateTokens 使用转换器的计数器统计 token.
func (t *Transformer) EstimateTokens(text string) int {
	return t.counter.CountTokens(text)
}

// ReductionPercentage 返回 round((original-optimized)/original*100), 0.5 向上取整.
// original 为 0 时返回 0; 注入使文本变长时为负.
func ReductionPercentage(original, optimized int) int {
	if original == 0 {
		return 0
	}
	pct := float64(original-optimized) / float64(original) * 100
	return int(math.Floor(pct + 0.5))
}
