package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidDecodeProviders lists known decode provider names. Used by [Validate]
// to warn about unrecognised names without rejecting them.
var ValidDecodeProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in secret-bearing fields, applies defaults, and validates the
// result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	// Secrets are usually injected via the environment rather than written
	// into the file.
	cfg.Decode.APIKey = os.ExpandEnv(cfg.Decode.APIKey)
	cfg.Store.PostgresDSN = os.ExpandEnv(cfg.Store.PostgresDSN)

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Stream.ClipSeconds <= 0 {
		cfg.Stream.ClipSeconds = 25
	}
	if cfg.Transcriber.Mode == "" {
		cfg.Transcriber.Mode = TranscriberExec
	}
	if cfg.Transcriber.Language == "" {
		cfg.Transcriber.Language = "en"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreSQLite
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "scramblecast.db"
	}
	if cfg.Decode.MaxFailures <= 0 {
		cfg.Decode.MaxFailures = 5
	}
	if cfg.Decode.ResetSeconds <= 0 {
		cfg.Decode.ResetSeconds = 30
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Stream
	if cfg.Stream.URL == "" {
		errs = append(errs, errors.New("stream.url is required"))
	}
	if cfg.Stream.ClipSeconds > 600 {
		errs = append(errs, fmt.Errorf("stream.clip_seconds %d is out of range (1, 600]", cfg.Stream.ClipSeconds))
	}

	// Transcriber
	if !cfg.Transcriber.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("transcriber.mode %q is invalid; valid values: exec, native", cfg.Transcriber.Mode))
	}
	if cfg.Transcriber.Mode == TranscriberExec && cfg.Transcriber.Command == "" {
		errs = append(errs, errors.New("transcriber.command is required when mode is exec"))
	}
	if cfg.Transcriber.Mode == TranscriberNative && cfg.Transcriber.ModelPath == "" {
		errs = append(errs, errors.New("transcriber.model_path is required when mode is native"))
	}

	// Decode
	if cfg.Decode.Provider != "" {
		if !slices.Contains(ValidDecodeProviders, cfg.Decode.Provider) {
			slog.Warn("unknown decode provider name — may be a typo or third-party provider",
				"name", cfg.Decode.Provider,
				"known", ValidDecodeProviders,
			)
		}
		if cfg.Decode.Model == "" {
			errs = append(errs, errors.New("decode.model is required when decode.provider is set"))
		}
	}
	if cfg.Decode.Provider != "" && cfg.Decode.APIKey == "" {
		slog.Warn("decode.api_key is empty; remote decode will be skipped and runs will rely on the local resolver")
	}

	// Store
	if !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: postgres, sqlite, memory", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when backend is postgres"))
	}
	if cfg.Store.Backend == StoreMemory {
		slog.Warn("store.backend is memory; run history is lost on restart")
	}

	// Schedule
	if cfg.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone %q is not a valid IANA zone: %w", cfg.Schedule.Timezone, err))
		}
	}
	if cfg.Schedule.Cron == "" {
		slog.Warn("schedule.cron is empty; runs start only via the manual trigger")
	}

	return errors.Join(errs...)
}
