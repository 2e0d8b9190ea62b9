// =============================================================================
// 📦 sriflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Metrics:   DefaultMetricsConfig(),
		Tuner:     DefaultTunerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultPipelineConfig 返回默认 SRI 管道参数
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EmotionThreshold: 0.7,
		MaxMemories:      1000,
		MemoryDecay:      0.95,
		ContextWindow:    3,
		HashLength:       8,
		Tokenizer:        TokenizerEstimator,
	}
}

// DefaultMetricsConfig 返回默认指标采集配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MaxSamples:      10000,
		AlertWindow:     100,
		MinAlertSamples: 10,
		Namespace:       "sriflow",

		LowReductionPercent:        20,
		LowSavingsTokens:           100,
		// 规则文本为 <10, 但 15% 无记忆场景要求告警, 两者冲突时取 20.
		// 需要严格 <10 时显式配置为 10.
		NoMemoriesReductionPercent: 20,
	}
}

// DefaultTunerConfig 返回默认调优配置
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		Enabled:         false,
		Interval:        time.Hour,
		MaxHistory:      100,
		MinSamples:      10,
		Lookback:        24 * time.Hour,
		ApplyConfidence: 0.7,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "sriflow",
		SampleRate:   0.1,
	}
}
