// SRI 管道运行时参数与单写者配置容器。
//
// 读者通过 Load 获取值拷贝；所有修改经由 Apply 校验后整体替换，
// 调优器只产出新配置，从不直接写入。
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tokenizer 名称
const (
	TokenizerEstimator = "estimator"
	TokenizerTiktoken  = "tiktoken"
)

// PipelineConfig SRI 管道参数
type PipelineConfig struct {
	// 情感强度准入阈值 [0,1]
	EmotionThreshold float64 `yaml:"emotion_threshold" json:"emotionThreshold" env:"EMOTION_THRESHOLD"`
	// 记忆容量上限
	MaxMemories int `yaml:"max_memories" json:"maxMemories" env:"MAX_MEMORIES"`
	// 每日衰减系数 (0,1]
	MemoryDecay float64 `yaml:"memory_decay" json:"memoryDecay" env:"MEMORY_DECAY"`
	// 保留的最近轮次数
	ContextWindow int `yaml:"context_window" json:"contextWindow" env:"CONTEXT_WINDOW"`
	// 指纹字节长度（十六进制长度为其两倍）
	HashLength int `yaml:"hash_length" json:"hashLength" env:"HASH_LENGTH"`
	// Token 计数器: estimator | tiktoken | tiktoken:<encoding>
	Tokenizer string `yaml:"tokenizer" json:"tokenizer" env:"TOKENIZER"`
}

// Validate 校验参数范围
func (c PipelineConfig) Validate() error {
	var errs []string

	// NaN 与任何数比较均为 false，需单独拒绝
	if math.IsNaN(c.EmotionThreshold) || c.EmotionThreshold < 0 || c.EmotionThreshold > 1 {
		errs = append(errs, "pipeline.emotion_threshold must be between 0 and 1")
	}
	if c.MaxMemories <= 0 {
		errs = append(errs, "pipeline.max_memories must be positive")
	}
	if math.IsNaN(c.MemoryDecay) || c.MemoryDecay <= 0 || c.MemoryDecay > 1 {
		errs = append(errs, "pipeline.memory_decay must be in (0, 1]")
	}
	if c.ContextWindow < 1 {
		errs = append(errs, "pipeline.context_window must be at least 1")
	}
	if c.HashLength < 4 || c.HashLength > 32 {
		errs = append(errs, "pipeline.hash_length must be between 4 and 32")
	}
	if c.Tokenizer != "" && c.Tokenizer != TokenizerEstimator &&
		c.Tokenizer != TokenizerTiktoken && !strings.HasPrefix(c.Tokenizer, TokenizerTiktoken+":") {
		errs = append(errs, fmt.Sprintf("pipeline.tokenizer %q is not supported", c.Tokenizer))
	}

	if len(errs) > 0 {
		return fmt.Errorf("pipeline config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// --- 配置容器 ---

// ErrNoPreviousConfig 历史中没有可回退的版本
var ErrNoPreviousConfig = errors.New("no previous pipeline config to roll back to")

// PipelineSnapshot 一次已应用的配置版本
type PipelineSnapshot struct {
	Config    PipelineConfig `json:"config"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Version   int            `json:"version"`
}

// ApplyCallback 新配置生效后调用
type ApplyCallback func(oldConfig, newConfig PipelineConfig)

// PipelineHolder 管道配置的单写者容器
type PipelineHolder struct {
	mu sync.RWMutex

	current        PipelineConfig
	history        []PipelineSnapshot
	maxHistorySize int
	callbacks      []ApplyCallback

	logger *zap.Logger
	now    func() time.Time
}

// HolderOption 配置 PipelineHolder
type HolderOption func(*PipelineHolder)

// WithHolderLogger 设置日志
func WithHolderLogger(logger *zap.Logger) HolderOption {
	return func(h *PipelineHolder) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHolderHistorySize 设置历史版本上限
func WithHolderHistorySize(size int) HolderOption {
	return func(h *PipelineHolder) {
		if size > 0 {
			h.maxHistorySize = size
		}
	}
}

// WithHolderClock 注入时钟（测试用）
func WithHolderClock(now func() time.Time) HolderOption {
	return func(h *PipelineHolder) {
		if now != nil {
			h.now = now
		}
	}
}

// NewPipelineHolder 以初始配置创建容器，初始配置必须合法
func NewPipelineHolder(initial PipelineConfig, opts ...HolderOption) (*PipelineHolder, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	h := &PipelineHolder{
		current:        initial,
		history:        make([]PipelineSnapshot, 0, 10),
		maxHistorySize: 10,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("component", "pipeline_config"))
	h.pushHistoryLocked(initial, "init")
	return h, nil
}

// MustPipelineHolder 同 NewPipelineHolder，失败时 panic
func MustPipelineHolder(initial PipelineConfig, opts ...HolderOption) *PipelineHolder {
	h, err := NewPipelineHolder(initial, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Load 返回当前配置的值拷贝
func (h *PipelineHolder) Load() PipelineConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Apply 校验并原子替换当前配置
func (h *PipelineHolder) Apply(next PipelineConfig, source string) error {
	if err := next.Validate(); err != nil {
		h.logger.Warn("rejected pipeline config", zap.String("source", source), zap.Error(err))
		return err
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.pushHistoryLocked(next, source)
	callbacks := append([]ApplyCallback(nil), h.callbacks...)
	h.mu.Unlock()

	if old != next {
		h.logger.Info("pipeline config applied",
			zap.String("source", source),
			zap.Float64("emotion_threshold", next.EmotionThreshold),
			zap.Int("context_window", next.ContextWindow),
			zap.Float64("memory_decay", next.MemoryDecay),
			zap.Int("max_memories", next.MaxMemories))
	}

	for _, cb := range callbacks {
		h.notifySafe(cb, old, next)
	}
	return nil
}

// Update 在写锁内基于最新配置计算并替换，避免 Load→Apply 之间的并发写入被覆盖。
// fn 返回与当前相同的配置时不产生新版本。返回最终生效的配置。
func (h *PipelineHolder) Update(fn func(current PipelineConfig) (PipelineConfig, error), source string) (PipelineConfig, error) {
	h.mu.Lock()
	old := h.current
	next, err := fn(old)
	if err != nil {
		h.mu.Unlock()
		return old, err
	}
	if next == old {
		h.mu.Unlock()
		return old, nil
	}
	if err := next.Validate(); err != nil {
		h.mu.Unlock()
		h.logger.Warn("rejected pipeline config", zap.String("source", source), zap.Error(err))
		return old, err
	}
	h.current = next
	h.pushHistoryLocked(next, source)
	callbacks := append([]ApplyCallback(nil), h.callbacks...)
	h.mu.Unlock()

	h.logger.Info("pipeline config updated",
		zap.String("source", source),
		zap.Float64("emotion_threshold", next.EmotionThreshold),
		zap.Int("context_window", next.ContextWindow),
		zap.Float64("memory_decay", next.MemoryDecay),
		zap.Int("max_memories", next.MaxMemories))

	for _, cb := range callbacks {
		h.notifySafe(cb, old, next)
	}
	return next, nil
}

// Rollback 回退到上一个版本
func (h *PipelineHolder) Rollback() error {
	h.mu.RLock()
	if len(h.history) < 2 {
		h.mu.RUnlock()
		return ErrNoPreviousConfig
	}
	prev := h.history[len(h.history)-2].Config
	h.mu.RUnlock()

	return h.Apply(prev, "rollback")
}

// OnApply 注册配置生效回调
func (h *PipelineHolder) OnApply(cb ApplyCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

// History 返回配置历史（旧到新）
func (h *PipelineHolder) History() []PipelineSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]PipelineSnapshot(nil), h.history...)
}

// Version 返回当前版本号
func (h *PipelineHolder) Version() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.history[len(h.history)-1].Version
}

// pushHistoryLocked 推入历史（环形缓冲），调用方持有写锁
func (h *PipelineHolder) pushHistoryLocked(cfg PipelineConfig, source string) {
	version := 1
	if len(h.history) > 0 {
		version = h.history[len(h.history)-1].Version + 1
	}
	h.history = append(h.history, PipelineSnapshot{
		Config:    cfg,
		Timestamp: h.now(),
		Source:    source,
		Version:   version,
	})
	if len(h.history) > h.maxHistorySize {
		h.history = h.history[len(h.history)-h.maxHistorySize:]
	}
}

// notifySafe 调用回调并捕获 panic
func (h *PipelineHolder) notifySafe(cb ApplyCallback, oldCfg, newCfg PipelineConfig) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("pipeline config callback panicked", zap.Any("panic", r))
		}
	}()
	cb(oldCfg, newCfg)
}
