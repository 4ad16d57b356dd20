package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"math-solver-gateway/solver/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores por resultado em hashes do Redis.
//
// Chaves (prefixo padrão "solver:stats"):
//   - <prefix>:total                 HINCRBY <outcome>, e "backend_ms"
//   - <prefix>:minute:<yyyymmddhhmm> HINCRBY <outcome> (expira em ttl)
//   - <prefix>:key:<client>          HINCRBY <outcome> (só com trackKeys)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por cliente.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "solver:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	keys := s.keysFor(ev)
	field := string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, keys.total, field, 1)
	if reachedBackend(ev.Outcome) {
		pipe.HIncrBy(ctx, keys.total, "backend_ms", ev.Duration.Milliseconds())
	}
	if keys.bucket != "" {
		pipe.HIncrBy(ctx, keys.bucket, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, keys.bucket, s.ttl)
		}
	}
	if keys.client != "" {
		pipe.HIncrBy(ctx, keys.client, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, keys.client, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

type statsKeys struct {
	total  string
	bucket string
	client string
}

func (s *RedisStatsStore) keysFor(ev domain.StatsEvent) statsKeys {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	k := statsKeys{total: s.prefix + ":total"}
	if s.bucket == "minute" {
		k.bucket = fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	}
	if s.trackKeys {
		if c := strings.TrimSpace(string(ev.Key)); c != "" {
			k.client = s.prefix + ":key:" + c
		}
	}
	return k
}
