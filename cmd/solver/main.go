package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"math-solver-gateway/solver"
	"math-solver-gateway/solver/application"
	"math-solver-gateway/solver/domain"
	"math-solver-gateway/solver/infra"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var backend domain.Backend
	switch cfg.backend {
	case "gemini":
		backend = infra.NewGeminiBackend(cfg.geminiKey, cfg.geminiModel)
	default:
		backend = infra.NewOpenAIBackend(cfg.openAIKey, cfg.openAIModel, cfg.openAIBaseURL)
	}

	pool := infra.NewFIFOPool(cfg.queueCapacity)
	gate := &application.Gate{
		Pool:     pool,
		Backend:  backend,
		Deadline: cfg.callDeadline,
	}

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
	stats := infra.MultiStats{memStats}
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		))
	}

	var cache domain.SolutionCache
	if cfg.cacheDSN != "" {
		db, err := sql.Open("pgx", cfg.cacheDSN)
		if err != nil {
			log.Fatalf("solution cache open error: %v", err)
		}
		defer func() { _ = db.Close() }()

		schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pg := infra.NewPostgresSolutionCache(db, cfg.cacheMaxAge)
		err = pg.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			log.Fatalf("solution cache schema error: %v", err)
		}
		pg.StartPurger(ctx, time.Hour, log.Printf)
		cache = pg
	}

	svc := application.SolveService{
		Gate:    gate,
		Backend: backend.Name(),
		Model:   backend.Model(),
		Cache:   cache,
		Stats:   stats,
	}
	keyFn := solver.DefaultKeyFunc(cfg.rateKeyHeader, cfg.trustXFF)

	solve := solver.SolveHandler(svc, solver.SolveOptions{
		MaxImageBytes: cfg.maxImageBytes,
		KeyFn:         keyFn,
		RetryAfter:    cfg.retryAfter,
	})
	if cfg.rateEnabled {
		store := infra.NewLimiterStore(cfg.rateRPS, cfg.rateBurst)
		store.StartJanitor(ctx)
		solve = solver.RateLimitMiddleware(solver.RateOptions{
			Store:               store,
			Stats:               stats,
			KeyFn:               keyFn,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})(solve)
	}

	mux := http.NewServeMux()
	mux.Handle("/solve-equation", solve)
	mux.Handle("/health", solver.HealthHandler())
	mux.Handle("/status", solver.StatusHandler(solver.StatusInfo{
		Backend:  backend.Name(),
		Model:    backend.Model(),
		Pool:     pool,
		Counters: func() any { return memStats.Total() },
	}))

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           solver.RequestLogMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.writeTimeout(),
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("math solver listening on %s", cfg.listenAddr)
	log.Printf("backend: %s model=%s deadline=%s writeTimeout=%s", cfg.backend, cfg.model(), cfg.callDeadline, cfg.writeTimeout())
	log.Printf("queue: capacity=%d maxImageBytes=%d", cfg.queueCapacity, cfg.maxImageBytes)
	log.Printf("rate: enabled=%v rps=%.3f burst=%d keyHeader=%q trustXFF=%v", cfg.rateEnabled, cfg.rateRPS, cfg.rateBurst, cfg.rateKeyHeader, cfg.trustXFF)
	log.Printf("stats: redis=%v addr=%q bucket=%q ttl=%s trackKeys=%v", cfg.statsEnabled, cfg.statsRedisAddr, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackKeys)
	log.Printf("cache: enabled=%v maxAge=%s", cfg.cacheDSN != "", cfg.cacheMaxAge)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
