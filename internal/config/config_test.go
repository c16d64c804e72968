package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimit.Limit != 20 || cfg.RateLimit.WindowMS != 60000 {
		t.Fatalf("expected 20 requests per 60s, got %d per %dms", cfg.RateLimit.Limit, cfg.RateLimit.WindowMS)
	}
	if cfg.Session.DebounceMS != 600 {
		t.Fatalf("expected 600ms debounce, got %d", cfg.Session.DebounceMS)
	}
	if cfg.Translate.Temperature != 0.2 {
		t.Fatalf("expected low temperature default, got %v", cfg.Translate.Temperature)
	}
	if cfg.Translate.Model != "" {
		t.Fatalf("model should default to empty so each provider picks its own, got %q", cfg.Translate.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_ENABLED", "true")
	t.Setenv("LOQA_BUS_EMBEDDED", "false")
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_RATE_LIMIT_LIMIT", "5")
	t.Setenv("LOQA_RATE_LIMIT_STORE", "lru")
	t.Setenv("LOQA_TRANSLATE_MODE", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("LOQA_TRANSLATE_TEMPERATURE", "0.1")
	t.Setenv("LOQA_SESSION_DEFAULT_MODE", "conservative")
	t.Setenv("LOQA_SESSION_MAX_RESTARTS", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Store != "lru" {
		t.Fatalf("expected rate limit overrides, got %+v", cfg.RateLimit)
	}
	if cfg.Translate.APIKey != "sk-test" || cfg.Translate.Model != "gpt-4o" {
		t.Fatalf("expected provider overrides, got %+v", cfg.Translate)
	}
	if cfg.Translate.Temperature != 0.1 {
		t.Fatalf("expected temperature override")
	}
	if cfg.Session.DefaultMode != "conservative" || cfg.Session.MaxRestarts != 2 {
		t.Fatalf("expected session overrides, got %+v", cfg.Session)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loqa.yaml")
	data := []byte(`
translate:
  mode: ollama
  endpoint: http://ollama:11434
  model: llama3.2:latest
speech:
  enabled: true
  voices:
    - name: Monica
      lang: es-ES
    - name: Samantha
      lang: en-US
      default: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Translate.Mode != "ollama" || cfg.Translate.Endpoint != "http://ollama:11434" {
		t.Fatalf("unexpected translate config %+v", cfg.Translate)
	}
	if len(cfg.Speech.Voices) != 2 || !cfg.Speech.Voices[1].Default {
		t.Fatalf("unexpected voices %+v", cfg.Speech.Voices)
	}
	if cfg.RateLimit.Limit != 20 {
		t.Fatalf("expected defaults to survive partial file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"openai without key": func(c *Config) { c.Translate.Mode = "openai"; c.Translate.APIKey = "" },
		"unknown mode":       func(c *Config) { c.Translate.Mode = "bard" },
		"zero limit":         func(c *Config) { c.RateLimit.Limit = 0 },
		"lru without keys":   func(c *Config) { c.RateLimit.Store = "lru"; c.RateLimit.MaxKeys = 0 },
		"zero debounce":      func(c *Config) { c.Session.DebounceMS = 0 },
		"bad session mode":   func(c *Config) { c.Session.DefaultMode = "mobile" },
		"max delay too low":  func(c *Config) { c.Session.MaxRestartDelayMS = 10 },
		"bad retention":      func(c *Config) { c.Audit.RetentionMode = "forever" },
		"bad log format":     func(c *Config) { c.Telemetry.LogFormat = "xml" },
		"exec speech no cmd": func(c *Config) { c.Speech.Enabled = true; c.Speech.Mode = "exec" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
