package infra

import (
	"context"
	"sync"

	"math-solver-gateway/solver/domain"
)

var _ domain.SlotPool = (*FIFOPool)(nil)

// DefaultQueueCapacity é o tamanho da fila quando nada é configurado.
const DefaultQueueCapacity = 5

// FIFOPool é a vaga única de chamada ao backend com uma fila de espera limitada.
//
// Toda leitura/escrita de busy e queue acontece sob mu. Na liberação a vaga é
// entregue direto ao primeiro da fila (busy continua true), então a ordem de
// admissão é estritamente a ordem de chegada.
type FIFOPool struct {
	mu       sync.Mutex
	busy     bool
	queue    []*waiter
	capacity int
}

type waiter struct {
	ready chan struct{}
}

// NewFIFOPool cria o pool com capacidade de fila `capacity` (<= 0 usa o padrão).
func NewFIFOPool(capacity int) *FIFOPool {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FIFOPool{capacity: capacity}
}

func (p *FIFOPool) Acquire(ctx context.Context) (func(), error) {
	p.mu.Lock()
	if !p.busy && len(p.queue) == 0 {
		p.busy = true
		p.mu.Unlock()
		return p.releaseOnce(), nil
	}
	if len(p.queue) >= p.capacity {
		p.mu.Unlock()
		return nil, domain.ErrTooManyRequests
	}
	w := &waiter{ready: make(chan struct{})}
	p.queue = append(p.queue, w)
	p.mu.Unlock()

	select {
	case <-w.ready:
		return p.releaseOnce(), nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	select {
	case <-w.ready:
		// a vaga chegou junto com o cancelamento: repassa para o próximo.
		p.mu.Unlock()
		p.release()
		return nil, ctx.Err()
	default:
	}
	p.remove(w)
	p.mu.Unlock()
	return nil, ctx.Err()
}

// State devolve uma fotografia consistente do pool.
func (p *FIFOPool) State() domain.PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.PoolState{Busy: p.busy, Waiting: len(p.queue), Capacity: p.capacity}
}

func (p *FIFOPool) releaseOnce() func() {
	var once sync.Once
	return func() { once.Do(p.release) }
}

func (p *FIFOPool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		p.busy = false
		return
	}
	next := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	close(next.ready)
}

// remove tira w da fila preservando a ordem. Deve ser chamado com p.mu travado.
func (p *FIFOPool) remove(w *waiter) {
	for i, q := range p.queue {
		if q == w {
			copy(p.queue[i:], p.queue[i+1:])
			p.queue[len(p.queue)-1] = nil
			p.queue = p.queue[:len(p.queue)-1]
			return
		}
	}
}
