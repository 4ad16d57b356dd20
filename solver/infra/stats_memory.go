package infra

import (
	"context"
	"sync"
	"time"

	"math-solver-gateway/solver/domain"
)

// Counters agrega pedidos por resultado.
type Counters struct {
	ByOutcome map[domain.Outcome]int64 `json:"by_outcome"`
	Total     int64                    `json:"total"`
	// TotalDuration soma só pedidos que passaram pelo backend (solved/timeout/backend_error/extraction_error).
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// MemoryStatsStore é uma implementação simples em memória.
// Serve para testes, desenvolvimento e para o endpoint /status quando Redis não está ligado.
type MemoryStatsStore struct {
	mu    sync.Mutex
	total Counters
	byKey map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total: newCounters(),
		byKey: make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCounters() Counters {
	return Counters{ByOutcome: make(map[domain.Outcome]int64)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	add(&s.total, ev)
	if s.trackKeys {
		c, ok := s.byKey[ev.Key]
		if !ok {
			c = newCounters()
		}
		add(&c, ev)
		s.byKey[ev.Key] = c
	}
	return nil
}

func add(c *Counters, ev domain.StatsEvent) {
	c.ByOutcome[ev.Outcome]++
	c.Total++
	if reachedBackend(ev.Outcome) {
		c.TotalDuration += ev.Duration
	}
}

func reachedBackend(o domain.Outcome) bool {
	switch o {
	case domain.OutcomeSolved, domain.OutcomeTimeout, domain.OutcomeBackendError, domain.OutcomeExtractionError:
		return true
	}
	return false
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v.clone()
	}
	return out
}

func (c Counters) clone() Counters {
	out := c
	out.ByOutcome = make(map[domain.Outcome]int64, len(c.ByOutcome))
	for k, v := range c.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

// MultiStats repassa o evento para vários stores; devolve o primeiro erro.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
