package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the coaching voice pipeline.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Overall per-request wall-clock budget, trigger receipt to response.
	RequestBudget time.Duration
	// Budget for the text-generation call inside a request.
	TextGenTimeout time.Duration
	// Budget for a single upstream synthesis call. Synthesis started for a
	// request that ran out of budget keeps running under this limit so the
	// result still lands in the cache.
	SynthesisTimeout time.Duration

	TextGenMode  string
	OpenAIAPIKey string
	OpenAIModel  string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	AliceVoiceID      string
	AidenVoiceID      string
	FallbackVoiceID   string

	AudioCacheDir   string
	AudioURLPrefix  string
	CacheTTL        time.Duration
	CacheMaxBytes   int64
	CacheSweepEvery time.Duration

	// Global vendor budget: synthesis calls allowed per window. Hard ceiling.
	SynthesisPerWindow int
	SynthesisWindow    time.Duration
	// Per-tier hourly quotas, a fairness gate inside the global budget.
	FreeTierPerHour  int
	ProTierPerHour   int
	EliteTierPerHour int

	DispatchWorkers       int
	DispatchQueueDepth    int
	PriorityDecayInterval time.Duration

	DatabaseURL      string
	RetentionWindow  time.Duration
	LedgerSweepEvery time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "coachpipe"),
		AllowAnyOrigin:   false,
		ShutdownTimeout:  15 * time.Second,

		RequestBudget:    500 * time.Millisecond,
		TextGenTimeout:   300 * time.Millisecond,
		SynthesisTimeout: 10 * time.Second,

		TextGenMode:  envOrDefault("TEXTGEN_MODE", "auto"),
		OpenAIAPIKey: stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIModel:  envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		ElevenLabsAPIKey:  stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
		// Premade voices matching the Alice and Aiden coaching personas.
		AliceVoiceID:    envOrDefault("ALICE_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		AidenVoiceID:    envOrDefault("AIDEN_VOICE_ID", "AZnzlk1XvdvUeBnXmlld"),
		FallbackVoiceID: stringsTrimSpace("FALLBACK_VOICE_ID"),

		AudioCacheDir:   envOrDefault("AUDIO_CACHE_DIR", "./audio_cache"),
		AudioURLPrefix:  envOrDefault("AUDIO_URL_PREFIX", "/audio"),
		CacheTTL:        30 * 24 * time.Hour,
		CacheMaxBytes:   500 * 1024 * 1024,
		CacheSweepEvery: 5 * time.Minute,

		SynthesisPerWindow: 600,
		SynthesisWindow:    time.Minute,
		FreeTierPerHour:    20,
		ProTierPerHour:     100,
		EliteTierPerHour:   300,

		DispatchWorkers:       4,
		DispatchQueueDepth:    64,
		PriorityDecayInterval: 2 * time.Second,

		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		RetentionWindow:  90 * 24 * time.Hour,
		LedgerSweepEvery: time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestBudget, err = durationFromEnv("COACH_REQUEST_BUDGET", cfg.RequestBudget)
	if err != nil {
		return Config{}, err
	}
	cfg.TextGenTimeout, err = durationFromEnv("COACH_TEXTGEN_TIMEOUT", cfg.TextGenTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("COACH_SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("AUDIO_CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheMaxBytes, err = int64FromEnv("AUDIO_CACHE_MAX_BYTES", cfg.CacheMaxBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheSweepEvery, err = durationFromEnv("AUDIO_CACHE_SWEEP_INTERVAL", cfg.CacheSweepEvery)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisPerWindow, err = intFromEnv("SYNTHESIS_PER_WINDOW", cfg.SynthesisPerWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisWindow, err = durationFromEnv("SYNTHESIS_WINDOW", cfg.SynthesisWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.FreeTierPerHour, err = intFromEnv("FREE_TIER_REQUESTS_PER_HOUR", cfg.FreeTierPerHour)
	if err != nil {
		return Config{}, err
	}
	cfg.ProTierPerHour, err = intFromEnv("PRO_TIER_REQUESTS_PER_HOUR", cfg.ProTierPerHour)
	if err != nil {
		return Config{}, err
	}
	cfg.EliteTierPerHour, err = intFromEnv("ELITE_TIER_REQUESTS_PER_HOUR", cfg.EliteTierPerHour)
	if err != nil {
		return Config{}, err
	}
	cfg.DispatchWorkers, err = intFromEnv("DISPATCH_WORKERS", cfg.DispatchWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.DispatchQueueDepth, err = intFromEnv("DISPATCH_QUEUE_DEPTH", cfg.DispatchQueueDepth)
	if err != nil {
		return Config{}, err
	}
	cfg.PriorityDecayInterval, err = durationFromEnv("PRIORITY_DECAY_INTERVAL", cfg.PriorityDecayInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionWindow, err = durationFromEnv("RESPONSE_RETENTION_WINDOW", cfg.RetentionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.LedgerSweepEvery, err = durationFromEnv("LEDGER_SWEEP_INTERVAL", cfg.LedgerSweepEvery)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
