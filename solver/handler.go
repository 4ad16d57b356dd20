package solver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"math-solver-gateway/solver/domain"
)

// DefaultMaxImageBytes é o maior upload aceito quando nada é configurado (10 MiB).
const DefaultMaxImageBytes = 10 << 20

// Solver é o que o handler precisa do serviço. application.SolveService implementa.
type Solver interface {
	Solve(ctx context.Context, key domain.Key, img domain.Image) (domain.Solution, error)
}

type SolveOptions struct {
	MaxImageBytes int64
	KeyFn         KeyFunc
	// RetryAfter vai no header quando a fila do gate está cheia.
	RetryAfter time.Duration
}

type errorBody struct {
	Detail    string `json:"detail"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
}

// SolveHandler atende POST /solve-equation com um upload multipart no campo "image".
func SolveHandler(svc Solver, opts SolveOptions) http.Handler {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", false)
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "POST only"})
			return
		}

		img, status, msg := readImage(w, r, opts.MaxImageBytes)
		if status != 0 {
			writeJSON(w, status, errorBody{Detail: msg})
			return
		}
		log.Printf("processing image: %s, type: %s, %d bytes id=%s", img.Filename, img.MIME, len(img.Data), RequestIDFrom(r.Context()))

		sol, err := svc.Solve(r.Context(), domain.Key(opts.KeyFn(r)), img)
		if err != nil {
			writeSolveError(w, r, err, opts.RetryAfter)
			return
		}
		writeJSON(w, http.StatusOK, sol)
	})
}

// readImage valida o upload. status != 0 indica erro do cliente.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) (domain.Image, int, string) {
	// folga para os cabeçalhos do multipart; o limite real do arquivo é checado abaixo.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Image{}, http.StatusRequestEntityTooLarge, "Image file too large"
		}
		return domain.Image{}, http.StatusBadRequest, "expected multipart/form-data with an 'image' field"
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		return domain.Image{}, http.StatusBadRequest, "missing 'image' field"
	}
	defer f.Close()

	ct := hdr.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return domain.Image{}, http.StatusBadRequest, "File must be an image"
	}
	if hdr.Size > maxBytes {
		return domain.Image{}, http.StatusRequestEntityTooLarge, "Image file too large"
	}
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return domain.Image{}, http.StatusBadRequest, "could not read image"
	}
	if int64(len(data)) > maxBytes {
		return domain.Image{}, http.StatusRequestEntityTooLarge, "Image file too large"
	}
	if len(data) == 0 {
		return domain.Image{}, http.StatusBadRequest, "Empty image file"
	}
	return domain.Image{Data: data, MIME: ct, Filename: hdr.Filename}, 0, ""
}

func writeSolveError(w http.ResponseWriter, r *http.Request, err error, retryAfter time.Duration) {
	id := RequestIDFrom(r.Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// o cliente foi embora; não há a quem responder.
		log.Printf("request abandoned by caller: %v id=%s", err, id)
		return
	}

	body := errorBody{Kind: string(domain.KindOf(err)), Retryable: domain.Retryable(err)}
	var status int
	switch domain.KindOf(err) {
	case domain.KindTooManyRequests:
		status = http.StatusTooManyRequests
		body.Detail = "Too many requests in queue. Please try again later."
		w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
	case domain.KindTimeout:
		status = http.StatusRequestTimeout
		body.Detail = "Request timed out. The math problem might be too complex."
	case domain.KindBackend:
		status = http.StatusBadGateway
		body.Detail = "AI service request failed: " + err.Error()
	case domain.KindNoPayloadFound, domain.KindIncompletePayload:
		status = http.StatusInternalServerError
		body.Detail = "Could not extract JSON from AI response: " + err.Error()
	case domain.KindMalformedPayload:
		status = http.StatusInternalServerError
		body.Detail = "Invalid JSON format from AI service: " + err.Error()
	case domain.KindSchemaViolation:
		status = http.StatusInternalServerError
		body.Detail = "Invalid response structure from AI service: " + err.Error()
	default:
		status = http.StatusInternalServerError
		body.Detail = "Internal server error occurred while processing the image"
	}
	log.Printf("solve failed (%d): %v id=%s", status, err, id)
	writeJSON(w, status, body)
}

// writeJSON serializa antes de escrever o status: falha de encode vira 500, não 200 vazio.
func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("response encode failed: %v", err)
		code = http.StatusInternalServerError
		b, _ = json.Marshal(errorBody{Detail: "could not encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

// HealthHandler atende GET /health.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "Math Solver API"})
	})
}

// StatusInfo alimenta GET /status. Counters pode ser nil.
type StatusInfo struct {
	Backend  string
	Model    string
	Pool     interface{ State() domain.PoolState }
	Counters func() any
}

// StatusHandler mostra o estado da vaga/fila e, se houver, os contadores.
func StatusHandler(info StatusInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"backend": info.Backend,
			"model":   info.Model,
		}
		if info.Pool != nil {
			out["pool"] = info.Pool.State()
		}
		if info.Counters != nil {
			out["stats"] = info.Counters()
		}
		writeJSON(w, http.StatusOK, out)
	})
}
