// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 SRIFlow 提供集中式的 TracerProvider 和 MeterProvider 配置。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
//
// 流水线的每个操作（optimize_context、store_experience 等）
// 各自产生一个 span；情景记忆的入库、淘汰与召回通过全局 Meter 记录。
package telemetry
