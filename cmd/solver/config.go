package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"math-solver-gateway/solver"
	"math-solver-gateway/solver/application"
	"math-solver-gateway/solver/infra"
)

type config struct {
	listenAddr string
	backend    string

	openAIKey     string
	openAIModel   string
	openAIBaseURL string
	geminiKey     string
	geminiModel   string

	queueCapacity int
	callDeadline  time.Duration
	maxImageBytes int64

	rateEnabled   bool
	rateRPS       float64
	rateBurst     int
	rateKeyHeader string
	trustXFF      bool
	retryAfter    time.Duration
	addHeaders    bool

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool

	cacheDSN    string
	cacheMaxAge time.Duration
}

func readConfig() (config, error) {
	env := &envReader{}
	cfg := config{}
	cfg.listenAddr = env.stringDefault("LISTEN_ADDR", ":8000")
	cfg.backend = strings.ToLower(env.stringDefault("BACKEND", "openai"))

	cfg.openAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.openAIModel = env.stringDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.openAIBaseURL = env.stringDefault("OPENAI_BASE_URL", infra.DefaultOpenAIBaseURL)
	cfg.geminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.geminiModel = env.stringDefault("GEMINI_MODEL", "gemini-2.5-flash")

	cfg.queueCapacity = env.intDefault("QUEUE_CAPACITY", infra.DefaultQueueCapacity)
	cfg.callDeadline = env.durationDefault("CALL_DEADLINE", application.DefaultDeadline)
	cfg.maxImageBytes = int64(env.intDefault("MAX_IMAGE_BYTES", solver.DefaultMaxImageBytes))

	cfg.rateEnabled = env.boolDefault("RATE_ENABLED", false)
	cfg.rateRPS = env.floatDefault("RATE_RPS", 1)
	cfg.rateBurst = env.intDefault("RATE_BURST", 5)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = env.boolDefault("TRUST_XFF", false)
	cfg.retryAfter = env.durationDefault("RETRY_AFTER", application.DefaultRetryAfter)
	cfg.addHeaders = env.boolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.statsEnabled = env.boolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = os.Getenv("STATS_REDIS_ADDR")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = env.intDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = env.stringDefault("STATS_PREFIX", "solver:stats")
	cfg.statsTTL = env.durationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = env.stringDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = env.boolDefault("STATS_TRACK_KEYS", false)

	cfg.cacheDSN = strings.TrimSpace(os.Getenv("CACHE_DSN"))
	cfg.cacheMaxAge = env.durationDefault("CACHE_MAX_AGE", 24*time.Hour)

	if err := env.err(); err != nil {
		return config{}, err
	}

	switch cfg.backend {
	case "openai":
		if strings.TrimSpace(cfg.openAIKey) == "" {
			return config{}, errors.New("OPENAI_API_KEY is required when BACKEND=openai")
		}
	case "gemini":
		if strings.TrimSpace(cfg.geminiKey) == "" {
			return config{}, errors.New("GEMINI_API_KEY is required when BACKEND=gemini")
		}
	default:
		return config{}, fmt.Errorf("BACKEND must be openai or gemini, got %q", cfg.backend)
	}
	if cfg.queueCapacity <= 0 {
		return config{}, errors.New("QUEUE_CAPACITY must be > 0")
	}
	if cfg.callDeadline <= 0 {
		return config{}, errors.New("CALL_DEADLINE must be > 0")
	}
	if cfg.maxImageBytes <= 0 {
		return config{}, errors.New("MAX_IMAGE_BYTES must be > 0")
	}
	if cfg.rateEnabled {
		if cfg.rateRPS <= 0 {
			return config{}, errors.New("RATE_RPS must be > 0")
		}
		if cfg.rateBurst <= 0 {
			return config{}, errors.New("RATE_BURST must be > 0")
		}
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	return cfg, nil
}

func (c config) model() string {
	if c.backend == "gemini" {
		return c.geminiModel
	}
	return c.openAIModel
}

// writeTimeout cobre o pior caso de um pedido: o último da fila espera a vaga
// passar por todos à frente (capacity chamadas, cada uma até callDeadline), faz
// a própria chamada e ainda precisa escrever a resposta.
func (c config) writeTimeout() time.Duration {
	return time.Duration(c.queueCapacity+1)*c.callDeadline + 30*time.Second
}

// envReader lê variáveis com default e acumula os valores que não parseiam,
// para a subida falhar em vez de cair no default em silêncio.
type envReader struct {
	errs []error
}

func (e *envReader) fail(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *envReader) err() error { return errors.Join(e.errs...) }

func (e *envReader) stringDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e *envReader) intDefault(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) floatDefault(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return f
}

func (e *envReader) boolDefault(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return b
}

func (e *envReader) durationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}
