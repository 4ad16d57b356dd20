package domain

import (
	"context"
	"time"
)

// Outcome é o estado terminal de um pedido, do ponto de vista das estatísticas.
type Outcome string

const (
	OutcomeSolved          Outcome = "solved"
	OutcomeCached          Outcome = "cached"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeTooManyRequests Outcome = "too_many_requests"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeBackendError    Outcome = "backend_error"
	OutcomeExtractionError Outcome = "extraction_error"
	OutcomeCanceled        Outcome = "canceled"
)

// StatsEvent descreve o fim de um pedido.
//
// Observação: Key pode ter cardinalidade alta; stores só devem indexar por Key
// quando explicitamente configurados.
type StatsEvent struct {
	Key      Key
	Outcome  Outcome
	Path     string
	Duration time.Duration
	At       time.Time
}

// StatsStore persiste estatísticas. O chamador trata erro como best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
