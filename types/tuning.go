package types

import "time"

// TuningParameter names a tunable pipeline knob.
type TuningParameter string

const (
	ParamEmotionThreshold TuningParameter = "emotionThreshold"
	ParamContextWindow    TuningParameter = "contextWindow"
	ParamMemoryDecay      TuningParameter = "memoryDecay"
)

// TuningImpact is the expected effect size of a recommendation.
type TuningImpact string

const (
	ImpactLow    TuningImpact = "low"
	ImpactMedium TuningImpact = "medium"
	ImpactHigh   TuningImpact = "high"
)

// TuningRecommendation proposes a new value for one parameter.
type TuningRecommendation struct {
	Parameter        TuningParameter `json:"parameter"`
	CurrentValue     float64         `json:"current_value"`
	RecommendedValue float64         `json:"recommended_value"`
	Reason           string          `json:"reason"`
	Confidence       float64         `json:"confidence"`
	Impact           TuningImpact    `json:"expected_impact"`
}

// TuningHistoryEntry records one applied recommendation.
// PerformanceAfter stays nil until a later tuning pass observes the effect.
type TuningHistoryEntry struct {
	Timestamp         time.Time       `json:"timestamp"`
	Parameter         TuningParameter `json:"parameter"`
	OldValue          float64         `json:"old_value"`
	NewValue          float64         `json:"new_value"`
	Reason            string          `json:"reason"`
	PerformanceBefore float64         `json:"performance_before"`
	PerformanceAfter  *float64        `json:"performance_after,omitempty"`
}

// TuningTrend 调优趋势
type TuningTrend string

const (
	TrendImproving TuningTrend = "improving"
	TrendDeclining TuningTrend = "declining"
	TrendStable    TuningTrend = "stable"
)

// TuningEffectiveness compares recent to earlier tuning results per parameter.
type TuningEffectiveness struct {
	Parameter     TuningParameter `json:"parameter"`
	Effectiveness float64         `json:"effectiveness"`
	Trend         TuningTrend     `json:"trend"`
}
