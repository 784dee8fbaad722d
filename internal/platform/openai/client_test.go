package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *client {
	t.Helper()
	c, err := NewClientWithConfig(logger.NewNop(), Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "test-model",
		MaxRetries: retries,
	})
	if err != nil {
		t.Fatalf("NewClientWithConfig: %v", err)
	}
	cc := c.(*client)
	cc.sleep = func(context.Context, time.Duration) error { return nil }
	return cc
}

func writeOutput(w http.ResponseWriter, text string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"output": []any{map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []any{map[string]any{
				"type": "output_text",
				"text": text,
			}},
		}},
	})
}

func TestGenerateJSONSendsSchemaAndParsesOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("path: want=%q got=%q", "/v1/responses", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("authorization: got=%q", got)
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text == nil || req.Text.Format["name"] != "issues" {
			t.Fatalf("format: got=%v", req.Text)
		}
		if len(req.Input) != 2 || !strings.Contains(req.Input[0].Content, "DOCREVIEW_PROMPT_STYLE_V1") {
			t.Fatalf("system prompt: got=%v", req.Input)
		}
		writeOutput(w, `{"issues":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	obj, err := c.GenerateJSON(context.Background(), "Review the contract.", "text", "issues", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if _, ok := obj["issues"]; !ok {
		t.Fatalf("GenerateJSON: missing issues key in %v", obj)
	}
}

func TestGenerateTextRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		writeOutput(w, "The Supplier must deliver.")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	text, err := c.GenerateText(context.Background(), "Rewrite.", "The Supplier shall deliver.")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "The Supplier must deliver." {
		t.Fatalf("text: got=%q", text)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestGenerateTextDoesNotRetryOn400(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	if _, err := c.GenerateText(context.Background(), "Rewrite.", "x"); err == nil {
		t.Fatalf("GenerateText: expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClientWithConfig(logger.NewNop(), Config{}); err == nil {
		t.Fatalf("NewClientWithConfig: expected error without api key")
	}
}

func TestConfigFromEnvRetriesAreOptIn(t *testing.T) {
	t.Setenv("OPENAI_MAX_RETRIES", "")
	if got := ConfigFromEnv().MaxRetries; got != 0 {
		t.Fatalf("default retries: want=0 got=%d", got)
	}
	t.Setenv("OPENAI_MAX_RETRIES", "2")
	if got := ConfigFromEnv().MaxRetries; got != 2 {
		t.Fatalf("retries: want=2 got=%d", got)
	}
}

func TestGenerateTextWithoutRetriesCallsOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	if _, err := c.GenerateText(context.Background(), "Rewrite.", "x"); err == nil {
		t.Fatalf("GenerateText: expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}
