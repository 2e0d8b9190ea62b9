// Package config 提供 sriflow 的配置管理功能。
//
// 包含配置加载（默认值 → YAML → 环境变量）、SRI 管道参数的单写者
// 容器 PipelineHolder，以及基于轮询的配置文件热重载。
package config
