package infra

import (
	"sync"
	"time"

	"math-solver-gateway/solver/domain"

	"golang.org/x/time/rate"
)

// LimiterStore guarda um token bucket (x/time/rate) por cliente, com limpeza
// periódica dos clientes que sumiram.
type LimiterStore struct {
	mu           sync.Mutex
	clients      map[domain.Key]*clientLimiter
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*LimiterStore)

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.cleanupEvery = d }
}

func NewLimiterStore(rps float64, burst int, opts ...LimiterOption) *LimiterStore {
	s := &LimiterStore{
		clients:      make(map[domain.Key]*clientLimiter),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LimiterStore) RPS() float64 { return float64(s.rps) }
func (s *LimiterStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *LimiterStore) Get(key domain.Key) domain.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		c.lastSeen = now
		return c.lim
	}
	c := &clientLimiter{lim: rate.NewLimiter(s.rps, s.burst), lastSeen: now}
	s.clients[key] = c
	return c.lim
}

// Len devolve quantos clientes têm limiter ativo.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *LimiterStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// StartJanitor limpa clientes inativos periodicamente até o ctx encerrar.
func (s *LimiterStore) StartJanitor(ctx interface{ Done() <-chan struct{} }) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
