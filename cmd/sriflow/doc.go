// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 sriflow 服务端程序入口。

# 概述

cmd/sriflow 把情景记忆与 SRI 流水线包装为 HTTP 服务，提供 serve、
health 和 version 子命令。程序支持 YAML 配置文件加载、环境变量覆盖、
结构化日志（zap）、OpenTelemetry 追踪以及独立端口的 Prometheus 指标。

# 核心类型

  - Server     — 组装 PipelineHolder、EpisodicStore、指标采集器、调优器与 handlers
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    RequestLogger、MetricsMiddleware、RateLimiter（基于 IP）
  - 自动调优：tuner.enabled 为 true 时按 tuner.interval 周期运行 AutoTune
  - 配置热更新：--config 指定的文件变更后重新应用 pipeline 段
  - 生命周期：errgroup 管理 HTTP、Metrics、调优循环与文件监听，
    收到 SIGINT/SIGTERM 后统一优雅关闭
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
