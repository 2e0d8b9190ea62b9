package types

// SRIResult is the outcome of one Strip-Recall-Inject pass.
// OriginalTokens counts the full conversation; StrippedTokens counts the
// stripped conversation handed to Inject.
type SRIResult struct {
	OriginalTokens      int            `json:"original_tokens"`
	StrippedTokens      int            `json:"stripped_tokens"`
	OptimizedTokens     int            `json:"optimized_tokens"`
	ReductionPercentage int            `json:"reduction_percentage"`
	InjectedMemories    []MemoryRecall `json:"injected_memories"`
	Context             string         `json:"context"`
}

// TokensSaved returns original minus optimized tokens (may be negative).
func (r SRIResult) TokensSaved() int {
	return r.OriginalTokens - r.OptimizedTokens
}

// MemoryCount returns how many memories were injected.
func (r SRIResult) MemoryCount() int {
	return len(r.InjectedMemories)
}

// TaskResult is what callers report after running a task.
type TaskResult struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ContextType classifies a conversation for metrics.
type ContextType string

const (
	ContextSimple  ContextType = "simple"
	ContextComplex ContextType = "complex"
)
