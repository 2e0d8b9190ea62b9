package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/types"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// 可选的分词器名称. "tiktoken:<model>" 形式会按模型选择编码.
const (
	NameEstimator = "estimator"
	NameTiktoken  = "tiktoken"
)

// 全局分词器注册表.
var (
	registry   = make(map[string]Tokenizer)
	registryMu sync.RWMutex
)

// Register 以名称注册分词器, 之后可通过 New 获取.
func Register(name string, t Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = t
}

func lookup(name string) (Tokenizer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// New 按名称构造 token 计数器.
// 未知名称返回 ErrTokenizerError; tiktoken 编码加载失败时在首次计数时回退到估算器.
func New(name string, logger *zap.Logger) (types.TokenCounter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch {
	case name == "" || name == NameEstimator:
		return NewCharEstimator(), nil
	case name == NameTiktoken:
		return NewCounter(NewTiktokenTokenizer(""), logger), nil
	case strings.HasPrefix(name, NameTiktoken+":"):
		model := strings.TrimPrefix(name, NameTiktoken+":")
		return NewCounter(NewTiktokenTokenizer(model), logger), nil
	}

	if t, ok := lookup(name); ok {
		return NewCounter(t, logger), nil
	}
	return nil, types.NewError(types.ErrTokenizerError, fmt.Sprintf("unknown tokenizer: %s", name))
}

// Counter 将可能失败的 Tokenizer 适配为 types.TokenCounter.
// 底层分词器出错时使用字符估算器, 并只记录一次警告.
type Counter struct {
	tokenizer Tokenizer
	fallback  *CharEstimator
	logger    *zap.Logger
	warnOnce  sync.Once
}

// NewCounter 创建带估算器兜底的计数器.
func NewCounter(t Tokenizer, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		tokenizer: t,
		fallback:  NewCharEstimator(),
		logger:    logger.With(zap.String("component", "tokenizer")),
	}
}

// CountTokens implements types.TokenCounter.
func (c *Counter) CountTokens(text string) int {
	n, err := c.tokenizer.CountTokens(text)
	if err != nil {
		c.warnOnce.Do(func() {
			c.logger.Warn("tokenizer unavailable, falling back to estimator",
				zap.String("tokenizer", c.tokenizer.Name()),
				zap.Error(err))
		})
		return c.fallback.CountTokens(text)
	}
	return n
}

// Name 返回底层分词器名称.
func (c *Counter) Name() string { return c.tokenizer.Name() }
