package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	agentcontext "github.com/BaSui01/sriflow/agent/context"
	"github.com/BaSui01/sriflow/agent/memory"
	"github.com/BaSui01/sriflow/agent/sri"
	"github.com/BaSui01/sriflow/api"
	"github.com/BaSui01/sriflow/types"
)

// maxImportBytes 记忆导入请求体上限
const maxImportBytes = 32 << 20

// =============================================================================
// 🧠 记忆与上下文优化 Handler
// =============================================================================

// MemoryHandler 处理上下文优化、经验存储与记忆管理请求
type MemoryHandler struct {
	runtime *sri.Runtime
	logger  *zap.Logger
}

// NewMemoryHandler 创建记忆处理器
func NewMemoryHandler(runtime *sri.Runtime, logger *zap.Logger) *MemoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryHandler{runtime: runtime, logger: logger.With(zap.String("handler", "memory"))}
}

// HandleOptimize 处理 POST /api/v1/memory/optimize
// @Summary 优化上下文
// @Tags 记忆
// @Accept json
// @Produce json
// @Param request body api.OptimizeRequest true "对话"
// @Success 200 {object} Response{data=api.OptimizeResponse}
// @Failure 400 {object} Response
// @Router /api/v1/memory/optimize [post]
func (h *MemoryHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.OptimizeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	threshold := sri.DefaultRelevanceThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	var (
		result types.SRIResult
		err    error
	)
	if req.AgentID != "" {
		result, err = h.runtime.OptimizeContextForAgent(r.Context(), req.AgentID, req.Turns, req.TaskID, threshold)
	} else {
		result, err = h.runtime.OptimizeContext(r.Context(), req.Turns, req.TaskID, threshold)
	}
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.OptimizeResponse{
		SRIResult:   result,
		TokensSaved: result.TokensSaved(),
		Summary:     agentcontext.InjectionSummary(result.InjectedMemories),
	})
}

// HandleExperience 处理 POST /api/v1/memory/experience
// @Summary 存储任务经验
// @Tags 记忆
// @Accept json
// @Produce json
// @Param request body api.ExperienceRequest true "任务结果"
// @Success 200 {object} Response{data=api.ExperienceResponse}
// @Router /api/v1/memory/experience [post]
func (h *MemoryHandler) HandleExperience(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ExperienceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Context == "" {
		WriteError(w, types.NewInvalidRequestError("context is required"), h.logger)
		return
	}

	ctx := r.Context()
	if req.AgentID != "" {
		ctx = types.WithAgentID(ctx, req.AgentID)
	}
	result := types.TaskResult{Success: req.Success, Error: req.Error, Metadata: req.Metadata}

	affect, err := h.runtime.StoreExperience(ctx, req.TaskID, req.Context, result)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	resp := api.ExperienceResponse{Stored: affect != nil, Affect: affect}
	if affect != nil {
		resp.Intensity = memory.Intensity(*affect)
	} else {
		resp.Intensity = memory.Intensity(h.runtime.Pipeline().CalculateEmotionFromResult(result))
	}
	WriteSuccess(w, resp)
}

// HandleFeedback 处理 POST /api/v1/memory/feedback
func (h *MemoryHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.FeedbackRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Fingerprint == "" {
		WriteError(w, types.NewInvalidRequestError("fingerprint is required"), h.logger)
		return
	}

	if err := h.runtime.Pipeline().UpdateEffectiveness(req.Fingerprint, req.Helpful); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"fingerprint": req.Fingerprint, "helpful": req.Helpful})
}

// HandleStats 处理 GET /api/v1/memory/stats
// @Summary 记忆统计
// @Tags 记忆
// @Produce json
// @Success 200 {object} Response{data=sri.MemoryStatsReport}
// @Router /api/v1/memory/stats [get]
func (h *MemoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.runtime.GetMemoryStats())
}

// HandleClear 处理 POST /api/v1/memory/clear
func (h *MemoryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n := h.runtime.Pipeline().ClearMemories()
	WriteSuccess(w, api.CountResponse{Count: n})
}

// HandleExport 处理 GET /api/v1/memory/export，直接返回快照 JSON
func (h *MemoryHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.runtime.Pipeline().ExportMemories()
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="memories.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleImport 处理 POST /api/v1/memory/import，请求体为导出的快照
func (h *MemoryHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		WriteError(w, types.NewInvalidRequestError("failed to read snapshot").WithCause(err), h.logger)
		return
	}

	n, err := h.runtime.Pipeline().ImportMemories(r.Context(), data)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.CountResponse{Count: n})
}
