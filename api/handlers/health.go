package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/sriflow/config"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

const defaultCheckTimeout = 5 * time.Second

// HealthHandler 健康检查处理器
// 存活探针只报告进程状态；就绪探针并发执行已注册的检查。
type HealthHandler struct {
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	started time.Time

	mu     sync.RWMutex
	checks []HealthCheck
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthOption 配置 HealthHandler
type HealthOption func(*HealthHandler)

// WithCheckTimeout 设置单个就绪检查的超时
func WithCheckTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHealthClock 注入时钟（测试用）
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger, opts ...HealthOption) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthHandler{
		logger:  logger,
		timeout: defaultCheckTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.now()
	return h
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求（简单健康检查）
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeLive(w)
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeLive(w)
}

func (h *HealthHandler) writeLive(w http.ResponseWriter) {
	now := h.now()
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: now,
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
	})
}

// HandleReady 处理 /ready 请求（就绪检查）
// 每个检查有独立超时，任一失败返回 503。
// @Summary 准备情况检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务已准备就绪"
// @Failure 503 {object} ServiceHealthResponse "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := h.runChecks(r.Context(), checks)

	status := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: h.now(),
		Checks:    results,
	}
	code := http.StatusOK
	for _, res := range results {
		if res.Status != "pass" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) runChecks(ctx context.Context, checks []HealthCheck) map[string]CheckResult {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(checks))
		g       errgroup.Group
	)
	for _, check := range checks {
		g.Go(func() error {
			res := h.runCheck(ctx, check)
			mu.Lock()
			results[check.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *HealthHandler) runCheck(ctx context.Context, check HealthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	if err == nil {
		return CheckResult{Status: "pass", Latency: latency.String()}
	}
	h.logger.Warn("health check failed",
		zap.String("check", check.Name()),
		zap.Error(err),
		zap.Duration("latency", latency))
	return CheckResult{Status: "fail", Message: err.Error(), Latency: latency.String()}
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🧠 SRI 就绪检查
// =============================================================================

// PipelineConfigSource 提供当前管道配置，*config.PipelineHolder 满足该接口
type PipelineConfigSource interface {
	Load() config.PipelineConfig
}

// MemoryCounter 报告记忆条数，*memory.EpisodicStore 满足该接口
type MemoryCounter interface {
	Count() int
}

// PipelineConfigCheck 校验当前生效的管道配置
type PipelineConfigCheck struct {
	source PipelineConfigSource
}

// NewPipelineConfigCheck 创建配置检查
func NewPipelineConfigCheck(source PipelineConfigSource) *PipelineConfigCheck {
	return &PipelineConfigCheck{source: source}
}

func (c *PipelineConfigCheck) Name() string { return "pipeline_config" }

func (c *PipelineConfigCheck) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.source.Load().Validate()
}

// StoreCapacityCheck 记忆条数超过 max_memories 时失败。
// 配置刚被调小、淘汰尚未完成的窗口内会短暂失败。
type StoreCapacityCheck struct {
	store  MemoryCounter
	source PipelineConfigSource
}

// NewStoreCapacityCheck 创建容量检查
func NewStoreCapacityCheck(store MemoryCounter, source PipelineConfigSource) *StoreCapacityCheck {
	return &StoreCapacityCheck{store: store, source: source}
}

func (c *StoreCapacityCheck) Name() string { return "episodic_store" }

func (c *StoreCapacityCheck) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, limit := c.store.Count(), c.source.Load().MaxMemories
	if n > limit {
		return fmt.Errorf("store holds %d memories, capacity %d", n, limit)
	}
	return nil
}
