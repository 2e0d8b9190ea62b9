package api

import (
	"github.com/BaSui01/sriflow/types"
)

// =============================================================================
// 上下文优化类型
// =============================================================================

// OptimizeRequest 表示一次 Strip-Recall-Inject 请求。
// @Description 上下文优化请求结构
type OptimizeRequest struct {
	// 任务 ID，用于指标归档
	TaskID string `json:"task_id" example:"task-42"`
	// 可选的 Agent ID；设置后召回查询带 Agent 前缀
	AgentID string `json:"agent_id,omitempty" example:"advisor"`
	// 完整对话
	Turns []types.Turn `json:"turns" binding:"required"`
	// 召回相关度门槛，缺省 0.7
	Threshold *float64 `json:"threshold,omitempty" example:"0.7"`
}

// OptimizeResponse 表示优化结果。
// @Description 上下文优化响应结构
type OptimizeResponse struct {
	types.SRIResult
	// 节省的 token 数（可能为负）
	TokensSaved int `json:"tokens_saved" example:"6800"`
	// 注入记忆的可读摘要
	Summary string `json:"summary" example:"Injected 1 memories: crypto (0.88): Add safeguards and disclaimers for crypto"`
}

// =============================================================================
// 经验与反馈类型
// =============================================================================

// ExperienceRequest 表示一次任务结果。
// @Description 经验存储请求结构
type ExperienceRequest struct {
	// 任务 ID
	TaskID string `json:"task_id" example:"task-42"`
	// 产生该经验的 Agent
	AgentID string `json:"agent_id,omitempty" example:"advisor"`
	// 任务上下文文本
	Context string `json:"context" binding:"required" example:"Should I buy Bitcoin?"`
	// 任务是否成功
	Success bool `json:"success"`
	// 失败原因
	Error string `json:"error,omitempty"`
	// 附加元数据；confidence 取值 [0,1]
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExperienceResponse 表示经验是否被写入情景记忆。
// @Description 经验存储响应结构
type ExperienceResponse struct {
	// 是否通过强度门槛并写入
	Stored bool `json:"stored"`
	// 写入时的情感向量
	Affect *types.AffectiveVector `json:"affect,omitempty"`
	// 情感强度
	Intensity float64 `json:"intensity" example:"0.385"`
}

// FeedbackRequest 表示对一条记忆的有效性反馈。
// @Description 记忆反馈请求结构
type FeedbackRequest struct {
	// 记忆指纹
	Fingerprint string `json:"fingerprint" binding:"required" example:"a1b2c3d4e5f60718"`
	// 记忆是否有帮助
	Helpful bool `json:"helpful"`
}

// CountResponse 表示受影响的记忆数量。
// @Description 计数响应结构
type CountResponse struct {
	Count int `json:"count" example:"3"`
}

// =============================================================================
// 调优类型
// =============================================================================

// ApplyTuningRequest 表示手动应用调优建议。
// 为空时应用当前计算出的建议。
// @Description 调优应用请求结构
type ApplyTuningRequest struct {
	Recommendations []types.TuningRecommendation `json:"recommendations,omitempty"`
}
