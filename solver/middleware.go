package solver

import (
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"math-solver-gateway/solver/application"
	"math-solver-gateway/solver/domain"
)

type KeyFunc func(r *http.Request) string

// RateOptions configura o rate limit por cliente na frente do gate.
type RateOptions struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc identifica o cliente: header configurado, depois o primeiro IP
// do X-Forwarded-For (se confiável), depois o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RateLimitMiddleware barra clientes acima da taxa com 429 antes de chegarem ao gate.
func RateLimitMiddleware(opts RateOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	svc := application.RateService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if dec.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Outcome: domain.OutcomeRateLimited,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil {
					log.Printf("stats record failed: %v", err)
				}
			}
			w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Detail:    "Rate limit exceeded. Please try again later.",
				Kind:      string(domain.OutcomeRateLimited),
				Retryable: true,
			})
		})
	}
}
