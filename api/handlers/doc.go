// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 SRIFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 SRIFlow 所有 HTTP 端点的请求处理逻辑，
包括上下文优化、经验存储、指标查询、调优以及健康检查。
所有 Handler 均遵循标准 net/http 接口，业务逻辑全部委托给 sri.Runtime。

# 核心类型

  - MemoryHandler    — 上下文优化、经验存储、反馈、记忆统计与导入导出
  - MetricsHandler   — 性能汇总、告警、单 Agent 样本
  - TuningHandler    — 调优建议、手动应用、历史、有效性与当前配置
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与响应大小

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteServiceError
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射；memory.ErrMemoryNotFound 映射为 404
*/
package handlers
