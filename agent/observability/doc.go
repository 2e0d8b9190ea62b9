// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 记录每次上下文优化的 token 指标，并汇总为性能视图与告警。

# 核心模型

  - TokenMetricsCollector：有界样本列表（默认 10000 条，超出淘汰最旧），
    提供 Record / PerformanceMetrics / Alerts / AgentMetrics /
    MetricsForRange / Clear / Export
  - Sink：样本转发接口，internal/metrics 的 Prometheus 导出器实现它

# 告警

Alerts 只看最近 AlertWindow（默认 100）个样本，样本少于
MinAlertSamples（默认 10）时不评估：

  - low_reduction（medium）：平均压缩率低于 LowReductionPercent
  - low_savings（low）：平均节省 token 低于 LowSavingsTokens
  - no_memories（high）：平均注入记忆数为 0 且平均压缩率低于
    NoMemoriesReductionPercent

# 与其他包协同

agent/sri 在每次优化后调用 Record；agent/evolution 的调优器通过
MetricsSource 接口读取 PerformanceMetrics 与 MetricsForRange。
*/
package observability
