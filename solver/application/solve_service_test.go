package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"math-solver-gateway/solver/domain"
)

const validRaw = "```json\n{\"title\":\"t\",\"equations\":[\"x=2\"],\"steps\":[],\"solution\":{\"x\":2},\"verification\":\"ok\"}\n```"

type fakeInvoker struct {
	text  string
	err   error
	calls int
}

func (f *fakeInvoker) Invoke(context.Context, domain.Image) (string, error) {
	f.calls++
	return f.text, f.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[domain.CacheKey]domain.Solution
	findErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[domain.CacheKey]domain.Solution)}
}

func (c *memoryCache) Find(_ context.Context, k domain.CacheKey) (domain.Solution, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return domain.Solution{}, false, c.findErr
	}
	s, ok := c.entries[k]
	return s, ok, nil
}

func (c *memoryCache) Save(_ context.Context, k domain.CacheKey, s domain.Solution) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = s
	return nil
}

type recordingStats struct {
	events []domain.StatsEvent
}

func (r *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingStats) last() domain.Outcome {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Outcome
}

func TestSolveService_Solve_ExtractsAndCaches(t *testing.T) {
	inv := &fakeInvoker{text: validRaw}
	cache := newMemoryCache()
	stats := &recordingStats{}
	svc := SolveService{Gate: inv, Backend: "gpt", Model: "gpt-4o-mini", Cache: cache, Stats: stats}
	img := domain.Image{Data: []byte("png-bytes")}

	sol, err := svc.Solve(context.Background(), "10.0.0.1", img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Title != "t" || *sol.Unknowns["x"] != 2 {
		t.Fatalf("unexpected solution: %+v", sol)
	}
	if stats.last() != domain.OutcomeSolved {
		t.Fatalf("expected solved outcome, got %q", stats.last())
	}

	again, err := svc.Solve(context.Background(), "10.0.0.1", img)
	if err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("expected cached call to skip the gate, got %d invocations", inv.calls)
	}
	if again.Title != sol.Title {
		t.Fatalf("cached solution mismatch")
	}
	if stats.last() != domain.OutcomeCached {
		t.Fatalf("expected cached outcome, got %q", stats.last())
	}
	if stats.events[0].Key != "10.0.0.1" {
		t.Fatalf("expected client key in stats, got %q", stats.events[0].Key)
	}
}

func TestSolveService_Solve_CacheErrorFallsThroughToGate(t *testing.T) {
	inv := &fakeInvoker{text: validRaw}
	cache := newMemoryCache()
	cache.findErr = errors.New("db down")
	svc := SolveService{Gate: inv, Cache: cache}

	if _, err := svc.Solve(context.Background(), "", domain.Image{Data: []byte("x")}); err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("expected gate to be called, got %d", inv.calls)
	}
}

func TestSolveService_Solve_PropagatesGateErrors(t *testing.T) {
	cases := []struct {
		err  error
		want domain.Outcome
	}{
		{domain.ErrTooManyRequests, domain.OutcomeTooManyRequests},
		{domain.New(domain.KindTimeout, "90s"), domain.OutcomeTimeout},
		{domain.Wrap(domain.KindBackend, "gpt", errors.New("500")), domain.OutcomeBackendError},
		{context.Canceled, domain.OutcomeCanceled},
	}
	for _, c := range cases {
		stats := &recordingStats{}
		svc := SolveService{Gate: &fakeInvoker{err: c.err}, Stats: stats}

		_, err := svc.Solve(context.Background(), "k", domain.Image{})
		if !errors.Is(err, c.err) {
			t.Fatalf("expected %v, got %v", c.err, err)
		}
		if stats.last() != c.want {
			t.Fatalf("expected outcome %q for %v, got %q", c.want, c.err, stats.last())
		}
	}
}

func TestSolveService_Solve_ExtractionErrorIsNotCached(t *testing.T) {
	inv := &fakeInvoker{text: "I could not read the image."}
	cache := newMemoryCache()
	stats := &recordingStats{}
	svc := SolveService{Gate: inv, Cache: cache, Stats: stats}

	_, err := svc.Solve(context.Background(), "k", domain.Image{Data: []byte("x")})
	if !errors.Is(err, domain.ErrNoPayloadFound) {
		t.Fatalf("expected ErrNoPayloadFound, got %v", err)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("failed extraction must not be cached")
	}
	if stats.last() != domain.OutcomeExtractionError {
		t.Fatalf("expected extraction_error outcome, got %q", stats.last())
	}
}

func TestHashImage_IsStable(t *testing.T) {
	a := HashImage([]byte("abc"))
	if a != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected sha256: %s", a)
	}
}
