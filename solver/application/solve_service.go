package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"math-solver-gateway/solver/domain"
)

// Invoker é o que o serviço precisa do gate. *Gate implementa.
type Invoker interface {
	Invoke(ctx context.Context, img domain.Image) (string, error)
}

// SolveService é a operação exposta: imagem in, Solution validada out.
//
// Cache e Stats são opcionais e best-effort: falha neles só gera log.
type SolveService struct {
	Gate    Invoker
	Backend string
	Model   string
	Cache   domain.SolutionCache
	Stats   domain.StatsStore
}

// Solve consulta o cache, passa pelo gate e extrai a resposta.
// A extração roda depois que a vaga já foi devolvida.
func (s SolveService) Solve(ctx context.Context, key domain.Key, img domain.Image) (domain.Solution, error) {
	start := time.Now()
	cacheKey := domain.CacheKey{ImageHash: HashImage(img.Data), Backend: s.Backend, Model: s.Model}

	if s.Cache != nil {
		sol, ok, err := s.Cache.Find(ctx, cacheKey)
		if err != nil {
			log.Printf("solution cache lookup failed: %v", err)
		} else if ok {
			s.record(ctx, key, domain.OutcomeCached, start)
			return sol, nil
		}
	}

	raw, err := s.Gate.Invoke(ctx, img)
	if err != nil {
		s.record(ctx, key, OutcomeFor(err), start)
		return domain.Solution{}, err
	}

	sol, err := Extract(raw)
	if err != nil {
		log.Printf("extraction failed (%s): %v; raw=%q", domain.KindOf(err), err, truncate(raw, 500))
		s.record(ctx, key, domain.OutcomeExtractionError, start)
		return domain.Solution{}, err
	}

	if s.Cache != nil {
		if err := s.Cache.Save(ctx, cacheKey, sol); err != nil {
			log.Printf("solution cache save failed: %v", err)
		}
	}
	s.record(ctx, key, domain.OutcomeSolved, start)
	return sol, nil
}

func (s SolveService) record(ctx context.Context, key domain.Key, outcome domain.Outcome, start time.Time) {
	if s.Stats == nil {
		return
	}
	ev := domain.StatsEvent{
		Key:      key,
		Outcome:  outcome,
		Path:     "solve",
		Duration: time.Since(start),
		At:       time.Now(),
	}
	// o ctx do chamador pode já estar cancelado; estatística não deve se perder por isso.
	if err := s.Stats.Record(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("stats record failed: %v", err)
	}
}

// OutcomeFor traduz um erro terminal no Outcome das estatísticas.
func OutcomeFor(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeSolved
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeCanceled
	}
	switch domain.KindOf(err) {
	case domain.KindTooManyRequests:
		return domain.OutcomeTooManyRequests
	case domain.KindTimeout:
		return domain.OutcomeTimeout
	case domain.KindNoPayloadFound, domain.KindIncompletePayload,
		domain.KindMalformedPayload, domain.KindSchemaViolation:
		return domain.OutcomeExtractionError
	}
	return domain.OutcomeBackendError
}

// HashImage é a chave de cache da imagem (sha256 em hex).
func HashImage(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
