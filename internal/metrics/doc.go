// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、上下文优化、情景记忆与自适应调优四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
注册机制；所有指标按 namespace 隔离。Collector 同时实现
memory.StoreObserver、observability.Sink 与 evolution.TuningObserver，
可以直接挂接到对应组件上。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx
  - SRI 指标：优化次数、优化前后 token 数、节省 token、压缩率与注入记忆数分布
  - 记忆指标：入库尝试（按 outcome/admitted）、淘汰数、当前记忆数
  - 调优指标：每个参数的调优次数，以及当前管道参数值（ObserveConfig）
*/
package metrics
