// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 sri 实现 Strip-Recall-Inject 上下文优化流水线。

# 概述

每次调用 LLM 前，编排层把完整对话交给 Pipeline：

 1. Strip：只保留最近 ContextWindow 轮
 2. Recall：以裁剪后的文本查询情景记忆
 3. Inject：把相关记忆的压缩形式追加到上下文之后

任务完成后，编排层调用 StoreExperience，把成功或失败转为
固定的情感向量；强度达到 EmotionThreshold 时写入情景记忆。

# 核心模型

  - Pipeline：OptimizeContext / OptimizeContextForAgent /
    StoreExperience / MemoryStats 等操作，每个操作一个 OpenTelemetry span
  - Runtime：组合 Pipeline、TokenMetricsCollector、AdaptiveTuner 与
    PipelineHolder，提供指标查询、调优建议、手动与自动调优
  - EmotionFromResult / DerivePolicyDelta：任务结果到情感向量与
    策略调整的映射

# 配置所有权

PipelineHolder 是唯一的配置容器；调优器只返回新配置值，
由 Runtime 通过 Apply 单点写入。
*/
package sri
