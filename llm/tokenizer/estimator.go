package tokenizer

import "unicode/utf8"

// charsPerToken 是字符估算器使用的固定比例.
const charsPerToken = 4

// CharEstimator 按 ceil(字符数/4) 估算 token 数.
// 与具体模型无关, 用于比较优化前后的相对大小.
type CharEstimator struct{}

// NewCharEstimator 创建字符估算器.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{}
}

// CountTokens implements types.TokenCounter.
func (e *CharEstimator) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Name 返回分词器名称.
func (e *CharEstimator) Name() string { return NameEstimator }
