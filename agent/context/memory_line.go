package context

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/sriflow/types"
)

// memoryLinePattern 匹配 "#mem: <context>-<outcome> → <description>".
// context 可含连字符与空格, outcome 取最后一个连字符之后的单词.
var memoryLinePattern = regexp.MustCompile(`^#mem:\s+(.+)-(\w+)\s+→\s+(.+)$`)

// MemoryLine 是一行注入记忆的组成部分.
type MemoryLine struct {
	Context     string `json:"context"`
	Outcome     string `json:"outcome"`
	Description string `json:"description"`
}

// ValidateMemoryLine 检查一行文本是否为合法的记忆压缩形式.
func ValidateMemoryLine(line string) bool {
	return memoryLinePattern.MatchString(line)
}

// ParseMemoryLine 拆分记忆压缩形式.
func ParseMemoryLine(line string) (MemoryLine, bool) {
	m := memoryLinePattern.FindStringSubmatch(line)
	if m == nil {
		return MemoryLine{}, false
	}
	return MemoryLine{Context: m[1], Outcome: m[2], Description: m[3]}, true
}

// InjectionSummary 返回一行人类可读的注入摘要, 用于日志.
func InjectionSummary(recalls []types.MemoryRecall) string {
	if len(recalls) == 0 {
		return "No relevant memories found."
	}
	parts := make([]string, len(recalls))
	for i, r := range recalls {
		parts[i] = fmt.Sprintf("%s (%.2f): %s", r.PolicyDelta.Context, r.Relevance, r.PolicyDelta.Description)
	}
	return fmt.Sprintf("Injected %d memories: %s", len(recalls), strings.Join(parts, "; "))
}
