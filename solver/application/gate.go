package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-solver-gateway/solver/domain"
)

// DefaultDeadline é o prazo de uma chamada ao backend quando Deadline não é configurado.
const DefaultDeadline = 90 * time.Second

// Gate admite uma chamada ao backend por vez, com fila limitada (via Pool) e
// prazo fixo por chamada. Quando o prazo estoura a vaga volta na hora, mesmo
// que a chamada antiga ainda não tenha terminado.
type Gate struct {
	Pool     domain.SlotPool
	Backend  domain.Backend
	Deadline time.Duration
}

type invokeResult struct {
	text string
	err  error
}

// Invoke espera a vaga, chama o backend sob o prazo e devolve o texto bruto.
//
// A vaga é liberada exatamente uma vez em todo caminho de saída. Se o chamador
// desistir durante a chamada, Invoke retorna ctx.Err() na hora, mas a vaga só
// volta ao pool quando o backend terminar ou o prazo estourar.
func (g *Gate) Invoke(ctx context.Context, img domain.Image) (string, error) {
	if g.Backend == nil {
		return "", domain.New(domain.KindBackend, "no backend configured")
	}

	release := func() {}
	if g.Pool != nil {
		rel, err := g.Pool.Acquire(ctx)
		if err != nil {
			return "", err
		}
		release = rel
	}

	deadline := g.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadline)

	done := make(chan invokeResult, 1)
	go func() {
		text, err := g.Backend.Invoke(callCtx, img)
		done <- invokeResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()
		release()
		if r.err != nil {
			if timedOut {
				return "", timeoutError(deadline)
			}
			return "", domain.Wrap(domain.KindBackend, g.Backend.Name(), r.err)
		}
		return r.text, nil

	case <-callCtx.Done():
		// resultado tardio é descartado: done é bufferizado, a goroutine não trava.
		cancel()
		release()
		return "", timeoutError(deadline)

	case <-ctx.Done():
		go func() {
			select {
			case <-done:
			case <-callCtx.Done():
			}
			cancel()
			release()
		}()
		return "", ctx.Err()
	}
}

func timeoutError(d time.Duration) error {
	return domain.New(domain.KindTimeout, fmt.Sprintf("backend did not answer within %s", d))
}
