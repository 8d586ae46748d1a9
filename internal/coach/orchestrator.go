// Package coach runs the trigger-to-response pipeline: eligibility, text
// generation, safety filtering, and the voice path with its degradation
// ladder. A trigger firing either produces a response within the request
// budget or degrades toward text-only; it never blocks the workout flow.
package coach

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adaptivefit/coachpipe/internal/audiocache"
	"github.com/adaptivefit/coachpipe/internal/dispatch"
	"github.com/adaptivefit/coachpipe/internal/ledger"
	"github.com/adaptivefit/coachpipe/internal/observability"
	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/safety"
	"github.com/adaptivefit/coachpipe/internal/speech"
	"github.com/adaptivefit/coachpipe/internal/textgen"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

const toastRuneLimit = 50

// Request is one trigger firing from a client.
type Request struct {
	UserID    string                 `json:"user_id"`
	Tier      trigger.Tier           `json:"tier"`
	Kind      trigger.Kind           `json:"trigger_kind"`
	PersonaID string                 `json:"persona_id"`
	Context   trigger.WorkoutContext `json:"context"`
	Device    trigger.DeviceState    `json:"device"`
}

// Response is the pipeline's answer to a firing. Skipped responses carry no
// text; degraded responses carry text but no audio.
type Response struct {
	ID             string `json:"id,omitempty"`
	Text           string `json:"text,omitempty"`
	ToastMessage   string `json:"toast_message,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	CacheHit       bool   `json:"cache_hit"`
	LatencyMs      int64  `json:"latency_ms"`
	TextLatencyMs  int64  `json:"text_latency_ms"`
	SynthLatencyMs int64  `json:"synth_latency_ms"`
	Skipped        bool   `json:"skipped,omitempty"`
}

type Config struct {
	RequestBudget  time.Duration
	TextGenTimeout time.Duration
	// RetentionWindow sets DeleteAfter on ledger records.
	RetentionWindow time.Duration
	// DefaultPersonaID is used when a request names no persona.
	DefaultPersonaID string
}

type Orchestrator struct {
	cfg        Config
	evaluator  *trigger.Evaluator
	personas   *persona.Registry
	generator  textgen.Generator
	cache      *audiocache.Cache
	dispatcher *dispatch.Dispatcher
	synth      speech.Synthesizer
	store      ledger.Store
	metrics    *observability.Metrics
}

func New(
	cfg Config,
	evaluator *trigger.Evaluator,
	personas *persona.Registry,
	generator textgen.Generator,
	cache *audiocache.Cache,
	dispatcher *dispatch.Dispatcher,
	synth speech.Synthesizer,
	store ledger.Store,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.RequestBudget <= 0 {
		cfg.RequestBudget = 500 * time.Millisecond
	}
	if cfg.TextGenTimeout <= 0 {
		cfg.TextGenTimeout = 300 * time.Millisecond
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 90 * 24 * time.Hour
	}
	if cfg.DefaultPersonaID == "" {
		cfg.DefaultPersonaID = "alice"
	}
	return &Orchestrator{
		cfg:        cfg,
		evaluator:  evaluator,
		personas:   personas,
		generator:  generator,
		cache:      cache,
		dispatcher: dispatcher,
		synth:      synth,
		store:      store,
		metrics:    metrics,
	}
}

// HandleTrigger runs the full pipeline for one firing. The only errors it
// returns are client faults: an unknown trigger kind or an unknown persona.
// Everything downstream degrades instead of failing.
func (o *Orchestrator) HandleTrigger(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	if req.Tier == "" {
		req.Tier = trigger.TierFree
	}
	decision, err := o.evaluator.Evaluate(req.Kind, req.Tier, req.Context)
	if err != nil {
		o.metrics.TriggerRequests.WithLabelValues(string(req.Kind), "invalid").Inc()
		return Response{}, err
	}
	if !decision.Eligible {
		o.metrics.TriggerRequests.WithLabelValues(string(req.Kind), "skipped").Inc()
		return Response{Skipped: true}, nil
	}

	personaID := req.PersonaID
	if personaID == "" {
		personaID = o.cfg.DefaultPersonaID
	}
	prof, err := o.personas.Get(personaID)
	if err != nil {
		o.metrics.TriggerRequests.WithLabelValues(string(req.Kind), "invalid").Inc()
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestBudget)
	defer cancel()

	text, textElapsed := o.generateText(ctx, prof, req, decision.MaxWords)
	text = truncateWords(text, decision.MaxWords)
	safeText, blocked := safety.Filter(req.Kind, text)
	if blocked {
		o.metrics.SafetyBlocks.Inc()
	}

	resp := Response{
		ID:            uuid.NewString(),
		Text:          safeText,
		ToastMessage:  toast(safeText),
		TextLatencyMs: textElapsed.Milliseconds(),
	}

	if o.voiceEligible(decision, req) {
		audioURL, cacheHit, synthLatency := o.speakWithin(ctx, prof, req.Kind, safeText, decision.Priority, req.Tier)
		resp.AudioURL = audioURL
		resp.CacheHit = cacheHit
		resp.SynthLatencyMs = synthLatency.Milliseconds()
	}

	resp.LatencyMs = time.Since(start).Milliseconds()
	o.metrics.ObserveResponseLatency(time.Since(start))
	o.metrics.TriggerRequests.WithLabelValues(string(req.Kind), "ok").Inc()

	o.record(req, prof.ID, resp)
	return resp, nil
}

// generateText calls the generator under its own timeout and substitutes the
// predefined fallback line on any failure.
func (o *Orchestrator) generateText(ctx context.Context, prof persona.Profile, req Request, maxWords int) (string, time.Duration) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.TextGenTimeout)
	defer cancel()

	genStart := time.Now()
	text, err := o.generator.Generate(genCtx, textgen.Prompt{
		Persona:  prof,
		Kind:     req.Kind,
		Context:  req.Context,
		MaxWords: maxWords,
	})
	elapsed := time.Since(genStart)
	o.metrics.ObserveTextGenLatency(elapsed)
	if err != nil {
		o.metrics.FallbackTexts.WithLabelValues("textgen_error").Inc()
		return persona.Fallback(req.Kind), elapsed
	}
	return text, elapsed
}

func (o *Orchestrator) voiceEligible(decision trigger.Decision, req Request) bool {
	if !decision.Voice {
		return false
	}
	if !req.Device.HasAudioOutput {
		return false
	}
	// Mid-workout speech needs earbuds, or explicit consent to use the
	// speaker; bare output capability is not enough.
	if !req.Device.HasEarbuds && !req.Device.FallbackToSpeaker {
		return false
	}
	// Voice is a paid entitlement; free tier always reads.
	return req.Tier == trigger.TierPro || req.Tier == trigger.TierElite
}

// speakWithin resolves audio inside what remains of the request budget. Any
// failure here, rate limiting, queue pressure, budget exhaustion, or a
// synthesis error, degrades the response to text-only.
func (o *Orchestrator) speakWithin(ctx context.Context, prof persona.Profile, kind trigger.Kind, text string, priority int, tier trigger.Tier) (string, bool, time.Duration) {
	voice := speech.Params{
		VoiceID:         prof.VoiceID,
		Stability:       prof.Stability,
		SimilarityBoost: prof.SimilarityBoost,
	}
	key := audiocache.Key{
		PersonaID: prof.ID,
		Kind:      kind,
		Text:      text,
		Voice:     voice,
	}
	lease, cacheHit, err := o.cache.GetOrSynthesize(ctx, key, func(synthCtx context.Context) (speech.Audio, error) {
		return o.dispatcher.Dispatch(synthCtx, dispatch.Job{
			Key:      key.Hash(),
			Tier:     tier,
			Priority: priority,
			Fn: func(jobCtx context.Context) (speech.Audio, error) {
				return o.synth.Synthesize(jobCtx, text, voice)
			},
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrRateLimited):
			o.metrics.FallbackTexts.WithLabelValues("rate_limited").Inc()
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			o.metrics.FallbackTexts.WithLabelValues("budget_exhausted").Inc()
		default:
			o.metrics.FallbackTexts.WithLabelValues("synthesis_error").Inc()
		}
		return "", false, 0
	}
	defer lease.Release()
	return lease.AudioURL, cacheHit, lease.SynthLatency
}

// record writes the ledger entry off the request path. A ledger failure
// never affects the delivered response.
func (o *Orchestrator) record(req Request, personaID string, resp Response) {
	if resp.Skipped {
		return
	}
	rec := ledger.Record{
		ID:          resp.ID,
		UserID:      req.UserID,
		Kind:        req.Kind,
		PersonaID:   personaID,
		Text:        resp.Text,
		Toast:       resp.ToastMessage,
		AudioURL:    resp.AudioURL,
		CacheHit:    resp.CacheHit,
		LatencyMs:   resp.LatencyMs,
		TextGenMs:   resp.TextLatencyMs,
		SynthMs:     resp.SynthLatencyMs,
		CreatedAt:   time.Now(),
		DeleteAfter: time.Now().Add(o.cfg.RetentionWindow),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.store.Save(ctx, rec); err != nil {
			o.metrics.LedgerWrites.WithLabelValues("error").Inc()
			log.Printf("ledger save %s: %v", rec.ID, err)
			return
		}
		o.metrics.LedgerWrites.WithLabelValues("ok").Inc()
	}()
}

// truncateWords clamps text to a word budget, keeping whole words.
func truncateWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:maxWords], " ")
}

// toast reduces the full text to a short notification line: the first
// sentence when it fits, otherwise a rune-bounded prefix.
func toast(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		sentence := strings.TrimSpace(text[:idx+1])
		if len([]rune(sentence)) <= toastRuneLimit {
			return sentence
		}
	}
	runes := []rune(text)
	if len(runes) <= toastRuneLimit {
		return text
	}
	return strings.TrimSpace(string(runes[:toastRuneLimit-1])) + "…"
}
