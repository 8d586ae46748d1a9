package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	// ModelID applies when Params does not carry one.
	ModelID string
	Timeout time.Duration
}

// ElevenLabsSynthesizer calls the ElevenLabs text-to-speech HTTP endpoint.
type ElevenLabsSynthesizer struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.elevenlabs.io/v1"
	}
	model := cfg.ModelID
	if model == "" {
		model = "eleven_monolingual_v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ElevenLabsSynthesizer{
		apiKey:  cfg.APIKey,
		baseURL: base,
		modelID: model,
		client:  &http.Client{Timeout: timeout},
	}
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenTTSRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string, params Params) (Audio, error) {
	if s.apiKey == "" {
		return Audio{}, errors.New("elevenlabs api key not configured")
	}
	if strings.TrimSpace(params.VoiceID) == "" {
		return Audio{}, errors.New("voice id required")
	}

	model := params.ModelID
	if model == "" {
		model = s.modelID
	}
	payload, err := json.Marshal(elevenTTSRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: elevenVoiceSettings{
			Stability:       params.Stability,
			SimilarityBoost: params.SimilarityBoost,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("encode tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", s.baseURL, params.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Audio{}, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Audio{}, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return Audio{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Audio{}, fmt.Errorf("tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("read tts response: %w", err)
	}
	return Audio{
		Bytes:    data,
		Format:   "mp3",
		Duration: EstimateDuration(text),
		Elapsed:  time.Since(start),
	}, nil
}
