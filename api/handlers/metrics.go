package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/agent/sri"
	"github.com/BaSui01/sriflow/types"
)

// =============================================================================
// 📈 Token 指标 Handler
// =============================================================================

// MetricsHandler 处理 token 优化指标查询
type MetricsHandler struct {
	runtime *sri.Runtime
	logger  *zap.Logger
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(runtime *sri.Runtime, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{runtime: runtime, logger: logger.With(zap.String("handler", "metrics"))}
}

// HandlePerformance 处理 GET /api/v1/metrics/performance
// @Summary 优化性能汇总
// @Tags 指标
// @Produce json
// @Success 200 {object} Response{data=types.PerformanceSummary}
// @Router /api/v1/metrics/performance [get]
func (h *MetricsHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.GetPerformanceMetrics())
}

// HandleAlerts 处理 GET /api/v1/metrics/alerts
func (h *MetricsHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.GetAlerts())
}

// HandleAgent 处理 GET /api/v1/metrics/agents/{id}
func (h *MetricsHandler) HandleAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	if agentID == "" {
		WriteError(w, types.NewInvalidRequestError("agent id is required"), h.logger)
		return
	}
	WriteSuccess(w, h.runtime.GetAgentMetrics(agentID))
}

// HandleExport 处理 GET /api/v1/metrics/export，返回全部样本
func (h *MetricsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.runtime.Collector().Export()
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
