package domain

import "context"

// CacheKey identifica uma solução já calculada: mesma imagem, mesmo backend, mesmo modelo.
type CacheKey struct {
	ImageHash string
	Backend   string
	Model     string
}

// SolutionCache guarda soluções por imagem para evitar nova chamada ao backend.
// Erros são tratados como best-effort pelo serviço.
type SolutionCache interface {
	Find(ctx context.Context, key CacheKey) (Solution, bool, error)
	Save(ctx context.Context, key CacheKey, s Solution) error
}
