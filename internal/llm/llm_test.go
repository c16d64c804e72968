package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loqalabs/loqa-interpret/internal/config"
)

func TestMockEchoesText(t *testing.T) {
	out, err := Collect(context.Background(), NewMockGenerator(), Request{Prompt: "Source language: en\nText: hello there "})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("unexpected mock output %q", out)
	}
}

func TestMockHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Collect(ctx, NewMockGenerator(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestOpenAIGenerator(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Hola  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL+"/v1", "sk-test", "")
	var chunks []Chunk
	err := gen.Generate(context.Background(), Request{System: "sys", Prompt: "Text: Hello", Temperature: 0.2}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "  Hola  " || chunks[0].CompletionTokens != 2 {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	if got.Model != defaultOpenAIModel {
		t.Fatalf("expected default model, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Text: Hello" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIGeneratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL+"/v1", "sk-bad", "gpt-4o-mini")
	if _, err := Collect(context.Background(), gen, Request{Prompt: "x"}); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestOpenAIGeneratorNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cmpl-1","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL+"/v1", "sk-test", "")
	out, err := Collect(context.Background(), gen, Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("expected empty success, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty content, got %q", out)
	}
}

func TestOllamaGeneratorStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "qwen2.5" || !req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = io.WriteString(w, "{\"response\":\"Hola\",\"done\":false}\n\n{\"response\":\" mundo\",\"done\":true,\"eval_count\":3}\n")
	}))
	defer srv.Close()

	out, err := Collect(context.Background(), NewOllamaGenerator(srv.URL+"/", "qwen2.5"), Request{Prompt: "hello world"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if out != "Hola mundo" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOllamaUsesItsOwnDefaultModel(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		got = req.Model
		_, _ = io.WriteString(w, "{\"response\":\"ok\",\"done\":true}\n")
	}))
	defer srv.Close()

	cfg := config.Default().Translate
	cfg.Mode = "ollama"
	cfg.Endpoint = srv.URL
	gen, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := Collect(context.Background(), gen, Request{Prompt: "x", Model: cfg.Model}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got != defaultOllamaModel {
		t.Fatalf("expected %q, got %q", defaultOllamaModel, got)
	}
}

func TestOllamaGeneratorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := Collect(context.Background(), NewOllamaGenerator(srv.URL, ""), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected status error")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, err := New(config.TranslateConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
	if _, err := New(config.TranslateConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	gen, err := New(config.TranslateConfig{Mode: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := gen.(*openAIGenerator); !ok {
		t.Fatalf("expected openai generator, got %T", gen)
	}
}
