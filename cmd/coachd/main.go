package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adaptivefit/coachpipe/internal/audiocache"
	"github.com/adaptivefit/coachpipe/internal/blob"
	"github.com/adaptivefit/coachpipe/internal/coach"
	"github.com/adaptivefit/coachpipe/internal/config"
	"github.com/adaptivefit/coachpipe/internal/dispatch"
	"github.com/adaptivefit/coachpipe/internal/httpapi"
	"github.com/adaptivefit/coachpipe/internal/ledger"
	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/speech"
	"github.com/adaptivefit/coachpipe/internal/textgen"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

func main() {
	// Optional .env for local development; the environment wins in deployment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := ledger.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("ledger store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("ledger store: in-memory (no DATABASE_URL)")
	} else {
		log.Printf("ledger store: postgres")
	}

	blobs, err := blob.NewFSStore(cfg.AudioCacheDir, cfg.AudioURLPrefix)
	if err != nil {
		log.Fatalf("audio blob store init failed: %v", err)
	}

	var synth speech.Synthesizer
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		synth = speech.NewMock()
		log.Printf("speech provider: mock (no ELEVENLABS_API_KEY)")
	} else {
		el := speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			Timeout: cfg.SynthesisTimeout,
		})
		synth = el
		if cfg.FallbackVoiceID != "" {
			synth = speech.NewFailoverSynthesizer(el, el, cfg.FallbackVoiceID)
			log.Printf("speech provider: elevenlabs with fallback voice")
		} else {
			log.Printf("speech provider: elevenlabs")
		}
	}

	generator, err := textgen.New(textgen.Config{
		Mode:   cfg.TextGenMode,
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	})
	if err != nil {
		log.Fatalf("text generator init failed: %v", err)
	}
	log.Printf("text generator: %T", generator)

	dispatcher := dispatch.New(dispatch.Config{
		Workers:      cfg.DispatchWorkers,
		QueueDepth:   cfg.DispatchQueueDepth,
		GlobalLimit:  cfg.SynthesisPerWindow,
		GlobalWindow: cfg.SynthesisWindow,
		TierLimits: map[trigger.Tier]int{
			trigger.TierFree:  cfg.FreeTierPerHour,
			trigger.TierPro:   cfg.ProTierPerHour,
			trigger.TierElite: cfg.EliteTierPerHour,
		},
		TierWindow:    time.Hour,
		DecayInterval: cfg.PriorityDecayInterval,
		JobTimeout:    cfg.SynthesisTimeout,
	}, metrics)
	defer dispatcher.Stop()

	cache := audiocache.New(audiocache.Config{
		TTL:          cfg.CacheTTL,
		MaxBytes:     cfg.CacheMaxBytes,
		SynthTimeout: cfg.SynthesisTimeout,
	}, blobs, metrics)

	personas := persona.NewRegistry(persona.Defaults(cfg.AliceVoiceID, cfg.AidenVoiceID)...)
	evaluator := trigger.NewEvaluator(trigger.Defaults())

	orchestrator := coach.New(
		coach.Config{
			RequestBudget:   cfg.RequestBudget,
			TextGenTimeout:  cfg.TextGenTimeout,
			RetentionWindow: cfg.RetentionWindow,
		},
		evaluator,
		personas,
		generator,
		cache,
		dispatcher,
		synth,
		store,
		metrics,
	)

	api := httpapi.New(cfg, orchestrator, personas, cache, store, metrics, blobs.Dir())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	cache.StartSweeper(runCtx, cfg.CacheSweepEvery)
	ledger.StartRetentionSweep(runCtx, store, cfg.LedgerSweepEvery)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
