package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"math-solver-gateway/solver/domain"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// SolvePrompt pede ao modelo exatamente o JSON que o extrator valida.
const SolvePrompt = "You are a math assistant. Solve the equation in the image step by step. " +
	"Return ONLY in JSON with this structure:\n\n" +
	"{\n" +
	"  \"title\": \"string\",\n" +
	"  \"equations\": [\"string\"],\n" +
	"  \"steps\": [{\"description\": \"string\", \"calculation\": \"string\", \"result\": \"string\"}],\n" +
	"  \"solution\": {\"x\": \"number or null\", \"y\": \"number or null\"},\n" +
	"  \"verification\": \"string\"\n" +
	"}\n" +
	"If no variables are solved, set x and y to null. " +
	"Do not include any text outside the JSON."

// OpenAIBackend chama /chat/completions com a imagem como data URL.
type OpenAIBackend struct {
	APIKey      string
	model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	httpc       *http.Client
}

func NewOpenAIBackend(key, model, baseURL string) *OpenAIBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
	}
	return &OpenAIBackend{
		APIKey:      strings.TrimSpace(key),
		model:       model,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		MaxTokens:   1000,
		Temperature: 0.1,
		// Timeout=0: quem corta a chamada é o prazo do gate, via ctx.
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient troca o client HTTP interno (testes, tracing).
func (b *OpenAIBackend) WithHTTPClient(c *http.Client) *OpenAIBackend {
	if c != nil {
		b.httpc = c
	}
	return b
}

func (b *OpenAIBackend) Name() string  { return "openai" }
func (b *OpenAIBackend) Model() string { return b.model }

func (b *OpenAIBackend) Invoke(ctx context.Context, img domain.Image) (string, error) {
	if b.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	mime := img.MIME
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	body := map[string]any{
		"model": b.model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": SolvePrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
		"max_tokens":  b.MaxTokens,
		"temperature": b.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.APIKey)

	resp, err := b.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("openai: decode envelope: %w", err)
	}
	if len(raw.Choices) == 0 || strings.TrimSpace(raw.Choices[0].Message.Content) == "" {
		return "", errors.New("openai: empty response")
	}
	return raw.Choices[0].Message.Content, nil
}
