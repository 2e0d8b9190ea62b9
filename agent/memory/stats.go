package memory

import (
	"sort"
	"time"

	"github.com/BaSui01/sriflow/types"
)

// ContextCount is a policy context and how many memories carry it.
type ContextCount struct {
	Context string `json:"context"`
	Count   int    `json:"count"`
}

// MemoryStats summarizes the store.
type MemoryStats struct {
	TotalMemories        int                   `json:"total_memories"`
	Capacity             int                   `json:"capacity"`
	AverageIntensity     float64               `json:"average_intensity"`
	AverageEffectiveness float64               `json:"average_effectiveness"`
	TotalAccesses        int                   `json:"total_accesses"`
	MostAccessed         string                `json:"most_accessed,omitempty"`
	ByOutcome            map[types.Outcome]int `json:"by_outcome"`
	ByDomain             map[string]int        `json:"by_domain"`
	TopContexts          []ContextCount        `json:"top_contexts"`
	Oldest               *time.Time            `json:"oldest,omitempty"`
	Newest               *time.Time            `json:"newest,omitempty"`
}

const topContextLimit = 5

// Stats computes aggregate statistics without touching access bookkeeping.
func (s *EpisodicStore) Stats() MemoryStats {
	capacity := s.holder.Load().MaxMemories
	memories := s.Snapshot()

	stats := MemoryStats{
		TotalMemories: len(memories),
		Capacity:      capacity,
		ByOutcome:     make(map[types.Outcome]int),
		ByDomain:      make(map[string]int),
		TopContexts:   []ContextCount{},
	}
	if len(memories) == 0 {
		return stats
	}

	var sumIntensity, sumEffectiveness float64
	contexts := make(map[string]int)
	mostAccessed := -1
	for i := range memories {
		m := &memories[i]
		sumIntensity += Intensity(m.Affect)
		sumEffectiveness += m.Effectiveness
		stats.TotalAccesses += m.AccessCount
		stats.ByOutcome[m.Outcome]++
		stats.ByDomain[m.Domain]++
		contexts[m.PolicyDelta.Context]++
		if m.AccessCount > mostAccessed {
			mostAccessed = m.AccessCount
			stats.MostAccessed = m.Fingerprint
		}
	}
	n := float64(len(memories))
	stats.AverageIntensity = sumIntensity / n
	stats.AverageEffectiveness = sumEffectiveness / n

	oldest := memories[0].CreatedAt
	newest := memories[len(memories)-1].CreatedAt
	stats.Oldest = &oldest
	stats.Newest = &newest

	for ctx, count := range contexts {
		stats.TopContexts = append(stats.TopContexts, ContextCount{Context: ctx, Count: count})
	}
	sort.Slice(stats.TopContexts, func(i, j int) bool {
		if stats.TopContexts[i].Count != stats.TopContexts[j].Count {
			return stats.TopContexts[i].Count > stats.TopContexts[j].Count
		}
		return stats.TopContexts[i].Context < stats.TopContexts[j].Context
	})
	if len(stats.TopContexts) > topContextLimit {
		stats.TopContexts = stats.TopContexts[:topContextLimit]
	}
	return stats
}
