package infra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"math-solver-gateway/solver/domain"
)

// SolutionCacheSchema cria a tabela usada por PostgresSolutionCache.
const SolutionCacheSchema = `
create table if not exists solved_equations (
  image_hash    text        not null,
  backend       text        not null,
  model         text        not null,
  solution_json jsonb       not null,
  created_at    timestamptz not null default now(),
  primary key (image_hash, backend, model)
)`

// PostgresSolutionCache guarda soluções por (image_hash, backend, model).
// O driver é o pgx (registrado como "pgx" via github.com/jackc/pgx/v5/stdlib).
type PostgresSolutionCache struct {
	DB *sql.DB
	// MaxAge > 0 ignora registros mais velhos que isso.
	MaxAge time.Duration
}

func NewPostgresSolutionCache(db *sql.DB, maxAge time.Duration) *PostgresSolutionCache {
	return &PostgresSolutionCache{DB: db, MaxAge: maxAge}
}

// EnsureSchema cria a tabela se ainda não existir.
func (c *PostgresSolutionCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, SolutionCacheSchema); err != nil {
		return fmt.Errorf("solution cache schema: %w", err)
	}
	return nil
}

func (c *PostgresSolutionCache) Find(ctx context.Context, key domain.CacheKey) (domain.Solution, bool, error) {
	const q = `
select solution_json, created_at
from solved_equations
where image_hash = $1 and backend = $2 and model = $3`
	var (
		js []byte
		ts time.Time
	)
	err := c.DB.QueryRowContext(ctx, q, key.ImageHash, key.Backend, key.Model).Scan(&js, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Solution{}, false, nil
	}
	if err != nil {
		return domain.Solution{}, false, err
	}
	if c.MaxAge > 0 && time.Since(ts) > c.MaxAge {
		return domain.Solution{}, false, nil
	}
	var s domain.Solution
	if err := json.Unmarshal(js, &s); err != nil {
		// JSON quebrado conta como ausente; a próxima Save sobrescreve.
		return domain.Solution{}, false, nil
	}
	return s, true, nil
}

// Save faz upsert e renova created_at.
func (c *PostgresSolutionCache) Save(ctx context.Context, key domain.CacheKey, s domain.Solution) error {
	js, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const q = `
insert into solved_equations (image_hash, backend, model, solution_json)
values ($1, $2, $3, $4)
on conflict (image_hash, backend, model) do update
set solution_json = excluded.solution_json,
    created_at = now()`
	_, err = c.DB.ExecContext(ctx, q, key.ImageHash, key.Backend, key.Model, js)
	return err
}

// PurgeOlderThan remove entradas antigas para não inchar a tabela.
func (c *PostgresSolutionCache) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	res, err := c.DB.ExecContext(ctx, `delete from solved_equations where created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartPurger roda PurgeOlderThan(MaxAge) a cada `every` até o ctx encerrar.
func (c *PostgresSolutionCache) StartPurger(ctx context.Context, every time.Duration, logf func(string, ...any)) {
	if every <= 0 || c.MaxAge <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := c.PurgeOlderThan(ctx, c.MaxAge)
				if err != nil {
					logf("solution cache purge failed: %v", err)
					continue
				}
				if n > 0 {
					logf("solution cache purged %d rows", n)
				}
			}
		}
	}()
}
