package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/types"
)

var (
	// ErrMemoryNotFound is returned when no memory has the given fingerprint.
	ErrMemoryNotFound = errors.New("memory not found")
	// ErrInvalidSnapshot is returned by Import for undecodable payloads.
	ErrInvalidSnapshot = errors.New("invalid memory snapshot")
)

// StoreObserver receives store events, e.g. for a Prometheus exporter.
type StoreObserver interface {
	ObserveAdmission(outcome types.Outcome, admitted bool)
	ObserveEvictions(n int)
	ObserveSize(n int)
}

// EpisodicStoreConfig holds the injectable collaborators of the store.
type EpisodicStoreConfig struct {
	// Now 用于测试。默认 time.Now
	Now func() time.Time
	// NewID 生成记忆 ID。默认 uuid.NewString
	NewID func() string
	// Observer 可选的事件观察者
	Observer StoreObserver
}

// StoreRequest describes one experience offered to the store.
type StoreRequest struct {
	Fingerprint string
	Affect      types.AffectiveVector
	Outcome     types.Outcome
	PolicyDelta types.PolicyDelta
	Context     string

	TaskID     string
	AgentID    string
	Domain     string           // empty → InferDomain(Context)
	Complexity types.Complexity // empty → medium
}

type episodicEntry struct {
	mem *types.EpisodicMemory
	// seq orders touches that share a clock reading
	seq uint64
}

// EpisodicStore is a bounded, in-process map of episodic memories keyed by
// affect fingerprint. Every operation, including the score-touch-sort of
// Recall, runs under one mutex.
type EpisodicStore struct {
	mu      sync.Mutex
	entries map[string]*episodicEntry
	seq     uint64

	holder   *config.PipelineHolder
	now      func() time.Time
	newID    func() string
	observer StoreObserver
	logger   *zap.Logger
}

// NewEpisodicStore creates a store that reads threshold, capacity and decay
// from holder on every call.
func NewEpisodicStore(holder *config.PipelineHolder, cfg EpisodicStoreConfig, logger *zap.Logger) *EpisodicStore {
	if holder == nil {
		panic("memory: pipeline config holder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &EpisodicStore{
		entries:  make(map[string]*episodicEntry),
		holder:   holder,
		now:      now,
		newID:    newID,
		observer: cfg.Observer,
		logger:   logger.With(zap.String("component", "episodic_store")),
	}
}

// Store admits the experience if its intensity reaches the configured
// threshold. It returns (nil, nil) when the gate rejects it. A new memory
// replaces any existing one with the same fingerprint and starts with
// effectiveness 0.5 and no accesses. Capacity is enforced before returning.
func (s *EpisodicStore) Store(ctx context.Context, req StoreRequest) (*types.EpisodicMemory, error) {
	if req.Fingerprint == "" {
		return nil, types.NewInvalidRequestError("fingerprint is required")
	}
	if err := req.Affect.Validate(); err != nil {
		return nil, err
	}
	if !req.Outcome.Valid() {
		return nil, types.NewInvalidRequestError("unknown outcome %q", string(req.Outcome))
	}
	complexity := req.Complexity
	if complexity == "" {
		complexity = types.ComplexityMedium
	}
	if !complexity.Valid() {
		return nil, types.NewInvalidRequestError("unknown complexity %q", string(complexity))
	}

	cfg := s.holder.Load()
	intensity := Intensity(req.Affect)
	if intensity < cfg.EmotionThreshold {
		s.logger.Debug("experience below emotion threshold",
			zap.String("fingerprint", req.Fingerprint),
			zap.Float64("intensity", intensity),
			zap.Float64("threshold", cfg.EmotionThreshold))
		recordAdmission(ctx, string(req.Outcome), false)
		if s.observer != nil {
			s.observer.ObserveAdmission(req.Outcome, false)
		}
		return nil, nil
	}

	domain := req.Domain
	if domain == "" {
		domain = InferDomain(req.Context)
	}

	s.mu.Lock()
	now := s.now()
	mem := &types.EpisodicMemory{
		ID:            s.newID(),
		Fingerprint:   req.Fingerprint,
		Affect:        req.Affect,
		Outcome:       req.Outcome,
		PolicyDelta:   req.PolicyDelta,
		Context:       req.Context,
		CreatedAt:     now,
		LastAccessed:  now,
		AccessCount:   0,
		Effectiveness: 0.5,
		TaskID:        req.TaskID,
		AgentID:       req.AgentID,
		Domain:        domain,
		Complexity:    complexity,
	}
	s.seq++
	s.entries[req.Fingerprint] = &episodicEntry{mem: mem, seq: s.seq}
	evicted := s.evictLocked(cfg.MaxMemories)
	out := mem.Clone()
	size := len(s.entries)
	s.mu.Unlock()

	s.logger.Debug("experience stored",
		zap.String("fingerprint", req.Fingerprint),
		zap.String("outcome", string(req.Outcome)),
		zap.Float64("intensity", intensity),
		zap.Int("evicted", evicted))

	recordAdmission(ctx, string(req.Outcome), true)
	recordEvictions(ctx, evicted)
	recordEntries(ctx, size)
	if s.observer != nil {
		s.observer.ObserveAdmission(req.Outcome, true)
		s.observer.ObserveEvictions(evicted)
		s.observer.ObserveSize(size)
	}
	return out, nil
}

// Recall scores every memory against query, keeps those with relevance at or
// above threshold, marks them accessed and returns them most relevant first.
// Relevance is the token overlap score weighted by DecayWeight.
func (s *EpisodicStore) Recall(ctx context.Context, query string, threshold float64) []types.MemoryRecall {
	cfg := s.holder.Load()
	queryTokens := tokenize(query)

	type hit struct {
		entry     *episodicEntry
		relevance float64
	}

	s.mu.Lock()
	now := s.now()
	hits := make([]hit, 0)
	for _, e := range s.entries {
		rel := OverlapScore(queryTokens, e.mem) * DecayWeight(cfg.MemoryDecay, e.mem.LastAccessed, now)
		rel = clamp01(rel)
		if rel >= threshold {
			hits = append(hits, hit{entry: e, relevance: rel})
		}
	}

	for _, h := range hits {
		s.touchLocked(h.entry, now)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].relevance != hits[j].relevance {
			return hits[i].relevance > hits[j].relevance
		}
		return hits[i].entry.mem.Fingerprint < hits[j].entry.mem.Fingerprint
	})

	recalls := make([]types.MemoryRecall, 0, len(hits))
	for _, h := range hits {
		m := h.entry.mem
		pd := m.PolicyDelta
		if pd.Triggers != nil {
			pd.Triggers = append([]string(nil), pd.Triggers...)
		}
		recalls = append(recalls, types.MemoryRecall{
			Fingerprint:    m.Fingerprint,
			PolicyDelta:    pd,
			Relevance:      h.relevance,
			CompressedForm: CompressedForm(m),
		})
	}
	s.mu.Unlock()

	recordRecall(ctx, len(recalls))
	return recalls
}

// GetByFingerprint returns a copy of the memory and marks it accessed.
func (s *EpisodicStore) GetByFingerprint(fingerprint string) (*types.EpisodicMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}
	s.touchLocked(e, s.now())
	return e.mem.Clone(), true
}

// Count returns the number of stored memories.
func (s *EpisodicStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// UpdateEffectiveness nudges a memory's effectiveness by +0.1 when it helped
// and -0.05 when it did not, clamped to [0, 1].
func (s *EpisodicStore) UpdateEffectiveness(fingerprint string, helpful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, fingerprint)
	}
	delta := -0.05
	if helpful {
		delta = 0.1
	}
	e.mem.Effectiveness = clamp01(e.mem.Effectiveness + delta)
	return nil
}

// EvictIfOverCapacity removes least recently accessed memories until the
// store fits the configured capacity. It returns the number removed.
func (s *EpisodicStore) EvictIfOverCapacity() int {
	maxMemories := s.holder.Load().MaxMemories

	s.mu.Lock()
	evicted := s.evictLocked(maxMemories)
	size := len(s.entries)
	s.mu.Unlock()

	if s.observer != nil && evicted > 0 {
		s.observer.ObserveEvictions(evicted)
		s.observer.ObserveSize(size)
	}
	return evicted
}

// Clear removes every memory and returns how many were dropped.
func (s *EpisodicStore) Clear() int {
	s.mu.Lock()
	cleared := len(s.entries)
	s.entries = make(map[string]*episodicEntry)
	s.mu.Unlock()

	s.logger.Info("episodic store cleared", zap.Int("cleared", cleared))
	if s.observer != nil {
		s.observer.ObserveSize(0)
	}
	return cleared
}

// Snapshot returns copies of all memories, oldest first.
func (s *EpisodicStore) Snapshot() []types.EpisodicMemory {
	s.mu.Lock()
	out := make([]types.EpisodicMemory, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e.mem.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// touchLocked marks e accessed at now. Caller holds s.mu.
func (s *EpisodicStore) touchLocked(e *episodicEntry, now time.Time) {
	e.mem.LastAccessed = now
	e.mem.AccessCount++
	s.seq++
	e.seq = s.seq
}

// evictLocked drops the least recently accessed entries above maxMemories.
// Caller holds s.mu.
func (s *EpisodicStore) evictLocked(maxMemories int) int {
	if len(s.entries) <= maxMemories {
		return 0
	}

	all := make([]*episodicEntry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].mem.LastAccessed.Equal(all[j].mem.LastAccessed) {
			return all[i].mem.LastAccessed.Before(all[j].mem.LastAccessed)
		}
		return all[i].seq < all[j].seq
	})

	toEvict := len(s.entries) - maxMemories
	for i := 0; i < toEvict; i++ {
		delete(s.entries, all[i].mem.Fingerprint)
	}

	if len(s.entries) > maxMemories {
		panic(fmt.Sprintf("memory: capacity violated after eviction: %d > %d", len(s.entries), maxMemories))
	}
	return toEvict
}

// --- 导入导出 ---

// memorySnapshot is the JSON export envelope.
type memorySnapshot struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Memories   []types.EpisodicMemory `json:"memories"`
}

// Export serializes all memories as JSON.
func (s *EpisodicStore) Export() ([]byte, error) {
	snap := memorySnapshot{
		Version:    1,
		ExportedAt: s.now(),
		Memories:   s.Snapshot(),
	}
	return json.Marshal(snap)
}

// Import restores memories from an Export payload. Entries that fail
// validation or fall below the current emotion threshold are skipped.
// Access bookkeeping is preserved and capacity is enforced afterwards.
func (s *EpisodicStore) Import(ctx context.Context, data []byte) (int, error) {
	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	cfg := s.holder.Load()
	accepted := make([]*types.EpisodicMemory, 0, len(snap.Memories))
	for i := range snap.Memories {
		m := snap.Memories[i]
		if m.Fingerprint == "" || !m.Outcome.Valid() || m.Affect.Validate() != nil {
			s.logger.Warn("skipping invalid imported memory", zap.Int("index", i))
			continue
		}
		if Intensity(m.Affect) < cfg.EmotionThreshold {
			continue
		}
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.Complexity == "" {
			m.Complexity = types.ComplexityMedium
		}
		if !m.Complexity.Valid() {
			s.logger.Warn("skipping imported memory with unknown complexity",
				zap.Int("index", i), zap.String("complexity", string(m.Complexity)))
			continue
		}
		m.Effectiveness = clamp01(m.Effectiveness)
		accepted = append(accepted, m.Clone())
	}

	// 按最近访问时间顺序插入，使 seq 与访问顺序一致
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].LastAccessed.Before(accepted[j].LastAccessed)
	})

	s.mu.Lock()
	for _, m := range accepted {
		s.seq++
		s.entries[m.Fingerprint] = &episodicEntry{mem: m, seq: s.seq}
	}
	evicted := s.evictLocked(cfg.MaxMemories)
	size := len(s.entries)
	s.mu.Unlock()

	recordEvictions(ctx, evicted)
	recordEntries(ctx, size)
	if s.observer != nil {
		s.observer.ObserveEvictions(evicted)
		s.observer.ObserveSize(size)
	}
	s.logger.Info("memories imported",
		zap.Int("offered", len(snap.Memories)),
		zap.Int("imported", len(accepted)),
		zap.Int("evicted", evicted))
	return len(accepted), nil
}
