package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"math-solver-gateway/solver/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiBackend chama o Gemini via SDK oficial (generative-ai-go).
//
// O client é criado por chamada, como no restante do projeto: a vaga do gate
// garante que nunca há duas chamadas simultâneas.
type GeminiBackend struct {
	APIKey string
	model  string
}

func NewGeminiBackend(apiKey, model string) *GeminiBackend {
	return &GeminiBackend{
		APIKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
	}
}

func (b *GeminiBackend) Name() string  { return "gemini" }
func (b *GeminiBackend) Model() string { return b.model }

func (b *GeminiBackend) Invoke(ctx context.Context, img domain.Image) (string, error) {
	if b.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(b.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(b.model)
	if m == nil {
		return "", fmt.Errorf("gemini: model %q is nil", b.model)
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0.1),
		MaxOutputTokens:  ptrInt32(1000),
		ResponseMIMEType: "application/json",
	}

	mime := img.MIME
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	resp, err := m.GenerateContent(ctx,
		genai.Text(SolvePrompt),
		genai.Blob{MIMEType: mime, Data: img.Data},
	)
	if err != nil {
		return "", err
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", errors.New("gemini: empty response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
