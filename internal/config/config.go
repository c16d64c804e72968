package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Audit       AuditConfig     `yaml:"audit"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Translate   TranslateConfig `yaml:"translate"`
	Session     SessionConfig   `yaml:"session"`
	Speech      SpeechConfig    `yaml:"speech"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AuditConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type RateLimitConfig struct {
	Limit    int    `yaml:"limit"`
	WindowMS int    `yaml:"window_ms"`
	Store    string `yaml:"store"` // memory, lru
	MaxKeys  int    `yaml:"max_keys"`
}

type TranslateConfig struct {
	Mode        string  `yaml:"mode"`     // mock, openai, ollama, exec
	Endpoint    string  `yaml:"endpoint"` // provider base URL; empty selects the provider default
	APIKey      string  `yaml:"api_key"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"` // empty selects the provider default
	Domain      string  `yaml:"domain"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type SessionConfig struct {
	DebounceMS        int    `yaml:"debounce_ms"`
	RestartDelayMS    int    `yaml:"restart_delay_ms"`
	MaxRestartDelayMS int    `yaml:"max_restart_delay_ms"`
	MaxRestarts       int    `yaml:"max_restarts"`
	DefaultMode       string `yaml:"default_mode"` // accumulating, conservative
	SourceLang        string `yaml:"source_lang"`
	TargetLang        string `yaml:"target_lang"`
}

type SpeechConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Mode       string        `yaml:"mode"` // mock, exec
	Command    string        `yaml:"command"`
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`
	Voices     []VoiceConfig `yaml:"voices"`
}

type VoiceConfig struct {
	Name    string `yaml:"name"`
	Lang    string `yaml:"lang"`
	Default bool   `yaml:"default"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-interpret",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audit: AuditConfig{
			Path:          "./data/loqa-audit.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		RateLimit: RateLimitConfig{
			Limit:    20,
			WindowMS: 60000,
			Store:    "memory",
			MaxKeys:  10000,
		},
		Translate: TranslateConfig{
			Mode:        "mock",
			Endpoint:    "",
			Model:       "",
			Domain:      "medical",
			MaxTokens:   512,
			Temperature: 0.2,
			TimeoutMS:   30000,
		},
		Session: SessionConfig{
			DebounceMS:        600,
			RestartDelayMS:    200,
			MaxRestartDelayMS: 3000,
			MaxRestarts:       5,
			DefaultMode:       "accumulating",
			SourceLang:        "en",
			TargetLang:        "es",
		},
		Speech: SpeechConfig{
			Enabled:    false,
			Mode:       "mock",
			SampleRate: 22050,
			Channels:   1,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LOQA_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "LOQA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Audit.Path, "LOQA_AUDIT_PATH")
	overrideString(&cfg.Audit.RetentionMode, "LOQA_AUDIT_RETENTION_MODE")
	overrideInt(&cfg.Audit.RetentionDays, "LOQA_AUDIT_RETENTION_DAYS")
	overrideInt(&cfg.Audit.MaxSessions, "LOQA_AUDIT_MAX_SESSIONS")
	overrideBool(&cfg.Audit.VacuumOnStart, "LOQA_AUDIT_VACUUM_ON_START")
	overrideInt(&cfg.RateLimit.Limit, "LOQA_RATE_LIMIT_LIMIT")
	overrideInt(&cfg.RateLimit.WindowMS, "LOQA_RATE_LIMIT_WINDOW_MS")
	overrideString(&cfg.RateLimit.Store, "LOQA_RATE_LIMIT_STORE")
	overrideInt(&cfg.RateLimit.MaxKeys, "LOQA_RATE_LIMIT_MAX_KEYS")
	overrideString(&cfg.Translate.Mode, "LOQA_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Endpoint, "LOQA_TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.APIKey, "LOQA_TRANSLATE_API_KEY")
	overrideString(&cfg.Translate.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Translate.Command, "LOQA_TRANSLATE_COMMAND")
	overrideString(&cfg.Translate.Model, "LOQA_TRANSLATE_MODEL")
	overrideString(&cfg.Translate.Model, "OPENAI_MODEL")
	overrideString(&cfg.Translate.Domain, "LOQA_TRANSLATE_DOMAIN")
	overrideInt(&cfg.Translate.MaxTokens, "LOQA_TRANSLATE_MAX_TOKENS")
	overrideFloat(&cfg.Translate.Temperature, "LOQA_TRANSLATE_TEMPERATURE")
	overrideInt(&cfg.Translate.TimeoutMS, "LOQA_TRANSLATE_TIMEOUT_MS")
	overrideInt(&cfg.Session.DebounceMS, "LOQA_SESSION_DEBOUNCE_MS")
	overrideInt(&cfg.Session.RestartDelayMS, "LOQA_SESSION_RESTART_DELAY_MS")
	overrideInt(&cfg.Session.MaxRestartDelayMS, "LOQA_SESSION_MAX_RESTART_DELAY_MS")
	overrideInt(&cfg.Session.MaxRestarts, "LOQA_SESSION_MAX_RESTARTS")
	overrideString(&cfg.Session.DefaultMode, "LOQA_SESSION_DEFAULT_MODE")
	overrideString(&cfg.Session.SourceLang, "LOQA_SESSION_SOURCE_LANG")
	overrideString(&cfg.Session.TargetLang, "LOQA_SESSION_TARGET_LANG")
	overrideBool(&cfg.Speech.Enabled, "LOQA_SPEECH_ENABLED")
	overrideString(&cfg.Speech.Mode, "LOQA_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "LOQA_SPEECH_COMMAND")
	overrideInt(&cfg.Speech.SampleRate, "LOQA_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "LOQA_SPEECH_CHANNELS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "text", "json", "logfmt":
	default:
		return errors.New("telemetry.log_format must be one of text|json|logfmt")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Audit.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("audit.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Audit.RetentionMode != "ephemeral" && cfg.Audit.Path == "" {
		return errors.New("audit.path must not be empty when retention is enabled")
	}
	if cfg.Audit.RetentionDays < 0 {
		return errors.New("audit.retention_days must be >= 0")
	}
	if cfg.RateLimit.Limit <= 0 {
		return errors.New("rate_limit.limit must be positive")
	}
	if cfg.RateLimit.WindowMS <= 0 {
		return errors.New("rate_limit.window_ms must be positive")
	}
	switch cfg.RateLimit.Store {
	case "memory":
	case "lru":
		if cfg.RateLimit.MaxKeys <= 0 {
			return errors.New("rate_limit.max_keys must be positive when store=lru")
		}
	default:
		return errors.New("rate_limit.store must be one of memory|lru")
	}
	switch cfg.Translate.Mode {
	case "mock", "openai", "ollama", "exec":
	default:
		return errors.New("translate.mode must be one of mock|openai|ollama|exec")
	}
	if cfg.Translate.Mode == "openai" && cfg.Translate.APIKey == "" {
		return errors.New("translate.api_key must be set when mode=openai")
	}
	if cfg.Translate.Mode == "exec" && cfg.Translate.Command == "" {
		return errors.New("translate.command must be set when mode=exec")
	}
	if cfg.Translate.MaxTokens < 0 {
		return errors.New("translate.max_tokens must be >= 0")
	}
	if cfg.Translate.Temperature < 0 || cfg.Translate.Temperature > 2 {
		return errors.New("translate.temperature must be between 0 and 2")
	}
	if cfg.Translate.TimeoutMS <= 0 {
		return errors.New("translate.timeout_ms must be positive")
	}
	if cfg.Session.DebounceMS <= 0 {
		return errors.New("session.debounce_ms must be positive")
	}
	if cfg.Session.RestartDelayMS < 0 {
		return errors.New("session.restart_delay_ms must be >= 0")
	}
	if cfg.Session.MaxRestartDelayMS < cfg.Session.RestartDelayMS {
		return errors.New("session.max_restart_delay_ms must be >= restart delay")
	}
	if cfg.Session.MaxRestarts < 0 {
		return errors.New("session.max_restarts must be >= 0")
	}
	switch cfg.Session.DefaultMode {
	case "accumulating", "conservative":
	default:
		return errors.New("session.default_mode must be one of accumulating|conservative")
	}
	if cfg.Speech.Enabled {
		switch cfg.Speech.Mode {
		case "mock", "exec":
		default:
			return errors.New("speech.mode must be one of mock|exec")
		}
		if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
			return errors.New("speech.command must be set when mode=exec")
		}
		if cfg.Speech.SampleRate <= 0 {
			return errors.New("speech.sample_rate must be positive")
		}
		if cfg.Speech.Channels <= 0 {
			return errors.New("speech.channels must be positive")
		}
	}
	return nil
}
