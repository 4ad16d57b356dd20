package application

import (
	"time"

	"math-solver-gateway/solver/domain"
)

// DefaultRetryAfter é o Retry-After sugerido quando nada é configurado.
const DefaultRetryAfter = 1 * time.Second

// RateService decide se o cliente pode chegar até o gate.
//
// Ele barra clientes insistentes antes que ocupem a fila do gate, que é
// compartilhada por todos. Não sabe nada sobre HTTP.
type RateService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s RateService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
