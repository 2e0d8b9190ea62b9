package types

import "time"

// PolicyDelta is the behavioral adjustment learned from one outcome.
// Category, Priority and Triggers are carried along but not interpreted.
type PolicyDelta struct {
	Action      string  `json:"action"`
	Context     string  `json:"context"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`

	Category string   `json:"category,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Triggers []string `json:"triggers,omitempty"`
}

// EpisodicMemory is one stored experience keyed by its affect fingerprint.
type EpisodicMemory struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Affect      AffectiveVector `json:"affect"`
	Outcome     Outcome         `json:"outcome"`
	PolicyDelta PolicyDelta     `json:"policy_delta"`
	Context     string          `json:"context"`

	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	AccessCount   int       `json:"access_count"`
	Effectiveness float64   `json:"effectiveness"`

	TaskID     string     `json:"task_id,omitempty"`
	AgentID    string     `json:"agent_id,omitempty"`
	Domain     string     `json:"domain,omitempty"`
	Complexity Complexity `json:"complexity,omitempty"`
}

// Clone returns a deep copy safe to hand out of the store.
func (m *EpisodicMemory) Clone() *EpisodicMemory {
	if m == nil {
		return nil
	}
	cp := *m
	if m.PolicyDelta.Triggers != nil {
		cp.PolicyDelta.Triggers = append([]string(nil), m.PolicyDelta.Triggers...)
	}
	return &cp
}

// MemoryRecall is one memory judged relevant to a query.
type MemoryRecall struct {
	Fingerprint    string      `json:"fingerprint"`
	PolicyDelta    PolicyDelta `json:"policy_delta"`
	Relevance      float64     `json:"relevance"`
	CompressedForm string      `json:"compressed_form"`
}
