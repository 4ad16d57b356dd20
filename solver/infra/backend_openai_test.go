package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"math-solver-gateway/solver/domain"
)

func TestOpenAIBackend_Invoke_SendsImageAndReturnsContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"t\"}"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("sk-test", "gpt-4o-mini", srv.URL+"/")
	text, err := b.Invoke(context.Background(), domain.Image{Data: []byte{0xFF, 0xD8}, MIME: "image/png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"title":"t"}` {
		t.Fatalf("unexpected content %q", text)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Fatalf("expected model in body, got %v", got["model"])
	}
	b2, _ := json.Marshal(got["messages"])
	if !strings.Contains(string(b2), "data:image/png;base64,/9g=") {
		t.Fatalf("expected image data URL in request, got %s", b2)
	}
}

func TestOpenAIBackend_Invoke_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAIBackend("sk-test", "m", srv.URL).Invoke(context.Background(), domain.Image{})
	if err == nil || !strings.Contains(err.Error(), "openai 429") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestOpenAIBackend_Invoke_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIBackend("sk-test", "m", srv.URL).Invoke(context.Background(), domain.Image{})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestOpenAIBackend_Invoke_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIBackend("", "m", "").Invoke(context.Background(), domain.Image{}); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestOpenAIBackend_Invoke_HonorsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewOpenAIBackend("sk-test", "m", srv.URL).Invoke(ctx, domain.Image{}); err == nil {
		t.Fatalf("expected canceled context to abort the call")
	}
}

type countingTransport struct {
	calls int
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return c.next.RoundTrip(r)
}

func TestOpenAIBackend_WithHTTPClient_UsesGivenClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	tr := &countingTransport{next: http.DefaultTransport}
	b := NewOpenAIBackend("sk-test", "m", srv.URL).WithHTTPClient(&http.Client{Transport: tr})
	if _, err := b.Invoke(context.Background(), domain.Image{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected the injected client to carry the call, got %d round trips", tr.calls)
	}

	// nil mantém o client atual
	if b.WithHTTPClient(nil); b.httpc.Transport != tr {
		t.Fatalf("nil client must not replace the current one")
	}
}
