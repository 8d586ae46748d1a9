package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.RequestBudget != 500*time.Millisecond {
		t.Fatalf("RequestBudget = %v, want 500ms", cfg.RequestBudget)
	}
	if cfg.CacheMaxBytes != 500*1024*1024 {
		t.Fatalf("CacheMaxBytes = %d, want 500MB", cfg.CacheMaxBytes)
	}
	if cfg.FreeTierPerHour != 20 || cfg.ProTierPerHour != 100 {
		t.Fatalf("tier quotas = %d/%d, want 20/100", cfg.FreeTierPerHour, cfg.ProTierPerHour)
	}
	if cfg.TextGenMode != "auto" {
		t.Fatalf("TextGenMode = %q, want %q", cfg.TextGenMode, "auto")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COACH_REQUEST_BUDGET", "750ms")
	t.Setenv("AUDIO_CACHE_MAX_BYTES", "1048576")
	t.Setenv("DISPATCH_QUEUE_DEPTH", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestBudget != 750*time.Millisecond {
		t.Fatalf("RequestBudget = %v, want 750ms", cfg.RequestBudget)
	}
	if cfg.CacheMaxBytes != 1048576 {
		t.Fatalf("CacheMaxBytes = %d, want 1048576", cfg.CacheMaxBytes)
	}
	if cfg.DispatchQueueDepth != 8 {
		t.Fatalf("DispatchQueueDepth = %d, want 8", cfg.DispatchQueueDepth)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COACH_REQUEST_BUDGET", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail on unparseable duration")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"COACH_REQUEST_BUDGET",
		"COACH_TEXTGEN_TIMEOUT",
		"COACH_SYNTHESIS_TIMEOUT",
		"TEXTGEN_MODE",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_BASE_URL",
		"ALICE_VOICE_ID",
		"AIDEN_VOICE_ID",
		"FALLBACK_VOICE_ID",
		"AUDIO_CACHE_DIR",
		"AUDIO_URL_PREFIX",
		"AUDIO_CACHE_TTL",
		"AUDIO_CACHE_MAX_BYTES",
		"AUDIO_CACHE_SWEEP_INTERVAL",
		"SYNTHESIS_PER_WINDOW",
		"SYNTHESIS_WINDOW",
		"FREE_TIER_REQUESTS_PER_HOUR",
		"PRO_TIER_REQUESTS_PER_HOUR",
		"ELITE_TIER_REQUESTS_PER_HOUR",
		"DISPATCH_WORKERS",
		"DISPATCH_QUEUE_DEPTH",
		"PRIORITY_DECAY_INTERVAL",
		"DATABASE_URL",
		"RESPONSE_RETENTION_WINDOW",
		"LEDGER_SWEEP_INTERVAL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
