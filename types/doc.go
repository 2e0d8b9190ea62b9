// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 sriflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent/memory、agent/context、
agent/sri、api 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - AffectiveVector    — 10 维情感向量（valence / arousal / dominance / confidence + 六种离散情绪）
  - Outcome / Complexity — 封闭枚举，未知取值在解析时即被拒绝
  - PolicyDelta        — 从一次结果中学到的行为调整
  - EpisodicMemory     — 以情感指纹为键的情景记忆
  - MemoryRecall       — 召回结果（相关度 + 压缩形式）
  - SRIResult          — Strip-Recall-Inject 一次优化的结果
  - Turn / Role        — 对话轮次
  - TokenMetricSample / PerformanceSummary / Alert — 指标采集与告警
  - TuningRecommendation / TuningHistoryEntry      — 自适应调优
  - Error / ErrorCode  — 结构化错误体系，含 HTTP 状态码与 Retryable 标记
  - TokenCounter       — 最小 Token 计数接口

# 主要能力

  - Context 传播：WithRequestID / WithAgentID / WithTaskID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
