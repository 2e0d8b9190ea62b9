package types

import "time"

// TokenMetricSample is one recorded optimization.
type TokenMetricSample struct {
	Timestamp           time.Time   `json:"timestamp"`
	TaskID              string      `json:"task_id"`
	AgentID             string      `json:"agent_id,omitempty"`
	OriginalTokens      int         `json:"original_tokens"`
	OptimizedTokens     int         `json:"optimized_tokens"`
	ReductionPercentage int         `json:"reduction_percentage"`
	InjectedMemories    int         `json:"injected_memories"`
	TokensSaved         int         `json:"tokens_saved"`
	ContextType         ContextType `json:"context_type"`
}

// AgentPerformance aggregates samples of one agent.
type AgentPerformance struct {
	AgentID          string  `json:"agent_id"`
	Optimizations    int     `json:"optimizations"`
	AverageReduction float64 `json:"average_reduction"`
}

// HourlyStat aggregates samples of one wall-clock hour.
type HourlyStat struct {
	Hour             string  `json:"hour"`
	Optimizations    int     `json:"optimizations"`
	AverageReduction float64 `json:"average_reduction"`
}

// PerformanceSummary is the aggregate view over all retained samples.
type PerformanceSummary struct {
	TotalOptimizations      int                `json:"total_optimizations"`
	AverageReduction        float64            `json:"average_reduction"`
	TotalTokensSaved        int                `json:"total_tokens_saved"`
	AverageMemoriesInjected float64            `json:"average_memories_injected"`
	TopPerformingAgents     []AgentPerformance `json:"top_performing_agents"`
	HourlyStats             []HourlyStat       `json:"hourly_stats"`
}

// AlertSeverity 告警级别
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Alert is a threshold breach over the recent sample window.
type Alert struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity AlertSeverity `json:"severity"`
}

// Alert types.
const (
	AlertLowReduction = "low_reduction"
	AlertLowSavings   = "low_savings"
	AlertNoMemories   = "no_memories"
)
