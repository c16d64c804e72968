package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/audit"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/languages"
	"github.com/loqalabs/loqa-interpret/internal/translate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T, cfg config.Config) (*Runtime, *httptest.Server) {
	t.Helper()
	r := New(cfg, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.setup(ctx); err != nil {
		cancel()
		t.Fatalf("setup: %v", err)
	}
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		r.teardown()
	})
	return r, srv
}

func TestHealthAndReadiness(t *testing.T) {
	r, srv := newTestRuntime(t, config.Default())

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before start, got %d", resp.StatusCode)
	}

	r.ready.Store(true)
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.StatusCode)
	}
}

func TestTranslateRoutes(t *testing.T) {
	_, srv := newTestRuntime(t, config.Default())

	for _, path := range []string{"/translate", "/api/translate"} {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(`{"text":"hola","targetLang":"en"}`))
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		var body map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || body["translated"] != "hola" {
			t.Fatalf("%s: status %d body %v", path, resp.StatusCode, body)
		}
	}

	resp, err := http.Get(srv.URL + "/translate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.StatusCode)
	}
}

func TestTranslateRateLimitIsShared(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Limit = 1
	_, srv := newTestRuntime(t, cfg)

	post := func(path string) int {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(`{"text":"a","targetLang":"es"}`))
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if got := post("/translate"); got != http.StatusOK {
		t.Fatalf("first request status %d", got)
	}
	if got := post("/api/translate"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on alias, got %d", got)
	}
}

func TestLanguages(t *testing.T) {
	_, srv := newTestRuntime(t, config.Default())
	resp, err := http.Get(srv.URL + "/v1/languages")
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	defer resp.Body.Close()
	var got []languages.Language
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 10 || got[2].Code != "ur" || got[2].Label != "Urdu" {
		t.Fatalf("unexpected languages %v", got)
	}
}

func TestAuditRoute(t *testing.T) {
	_, srv := newTestRuntime(t, config.Default())
	resp, err := http.Get(srv.URL + "/v1/sessions/s1/audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with ephemeral audit, got %d", resp.StatusCode)
	}

	cfg := config.Default()
	cfg.Audit.RetentionMode = "persistent"
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.db")
	r, srv := newTestRuntime(t, cfg)
	ctx := context.Background()
	if err := r.audit.BeginSession(ctx, "s1", "en", "es", "accumulating"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := r.audit.Record(ctx, audit.Entry{SessionID: "s1", Type: audit.TypeSessionStarted}); err != nil {
		t.Fatalf("record: %v", err)
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/s1/audit?limit=10")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	defer resp.Body.Close()
	var entries []struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != audit.TypeSessionStarted {
		t.Fatalf("unexpected entries %v", entries)
	}

	bad, err := http.Get(srv.URL + "/v1/sessions/s1/audit?limit=zero")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", bad.StatusCode)
	}
}

func TestEmbeddedBusServesTranslations(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Enabled = true
	cfg.Bus.Embedded = true
	cfg.Bus.Port = -1
	cfg.Speech.Enabled = true
	r, _ := newTestRuntime(t, cfg)

	if r.bus == nil || !r.bus.Healthy() {
		t.Fatal("expected a healthy bus connection")
	}
	if r.bridge == nil || !r.bridge.Healthy() {
		t.Fatal("expected the bridge to be subscribed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client := translate.NewBusClient(r.bus, "tester")
	res, err := client.Translate(ctx, translate.Request{Text: "bonjour", TargetLang: "en"})
	if err != nil {
		t.Fatalf("bus translate: %v", err)
	}
	if res.Translated != "bonjour" {
		t.Fatalf("unexpected translation %q", res.Translated)
	}
}
