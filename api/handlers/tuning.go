package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/agent/sri"
	"github.com/BaSui01/sriflow/api"
)

// =============================================================================
// 🎛️ 自适应调优 Handler
// =============================================================================

// TuningHandler 处理调优建议、应用与历史查询
type TuningHandler struct {
	runtime *sri.Runtime
	logger  *zap.Logger
}

// NewTuningHandler 创建调优处理器
func NewTuningHandler(runtime *sri.Runtime, logger *zap.Logger) *TuningHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TuningHandler{runtime: runtime, logger: logger.With(zap.String("handler", "tuning"))}
}

// HandleRecommendations 处理 GET /api/v1/tuning/recommendations
// @Summary 调优建议
// @Tags 调优
// @Produce json
// @Success 200 {object} Response{data=[]types.TuningRecommendation}
// @Router /api/v1/tuning/recommendations [get]
func (h *TuningHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.GetTuningRecommendations())
}

// HandleApply 处理 POST /api/v1/tuning/apply
// 请求体为空时应用当前计算出的建议，返回生效后的配置
func (h *TuningHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req api.ApplyTuningRequest
	if r.ContentLength != 0 {
		if !ValidateContentType(w, r, h.logger) {
			return
		}
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	recs := req.Recommendations
	if len(recs) == 0 {
		recs = h.runtime.GetTuningRecommendations()
	}

	cfg, err := h.runtime.ApplyTuningRecommendations(recs)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}

// HandleHistory 处理 GET /api/v1/tuning/history
func (h *TuningHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.TuningHistory())
}

// HandleEffectiveness 处理 GET /api/v1/tuning/effectiveness
func (h *TuningHandler) HandleEffectiveness(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.TuningEffectiveness())
}

// HandleRollback 处理 POST /api/v1/config/pipeline/rollback
// 没有更早版本时返回 404
func (h *TuningHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.runtime.RollbackConfig()
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, cfg)
}

// HandleConfig 处理 GET /api/v1/config/pipeline
func (h *TuningHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.Config())
}
