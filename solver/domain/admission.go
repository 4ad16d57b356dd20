package domain

import "context"

// Backend é a operação lenta e escassa protegida pelo gate.
//
// Invoke recebe a imagem e devolve o texto bruto produzido pelo modelo.
// Implementações devem respeitar o ctx (cancelamento best-effort).
type Backend interface {
	Name() string
	Model() string
	Invoke(ctx context.Context, img Image) (string, error)
}

// SlotPool representa a vaga única de chamada ao backend mais a fila de espera.
//
// A semântica é: Acquire bloqueia até a vaga ser entregue ou até o ctx encerrar.
// Se a fila estiver cheia na chegada, falha na hora com ErrTooManyRequests.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// PoolState é uma fotografia do pool, usada no endpoint de status.
type PoolState struct {
	Busy     bool `json:"busy"`
	Waiting  int  `json:"waiting"`
	Capacity int  `json:"capacity"`
}
