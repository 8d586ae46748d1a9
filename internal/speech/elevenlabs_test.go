package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-123" {
			t.Errorf("xi-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("fake-mp3"))
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "key-123", BaseURL: srv.URL})
	audio, err := s.Synthesize(context.Background(), "nice set", Params{VoiceID: "voice-1", Stability: 0.75, SimilarityBoost: 0.75})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio.Bytes) != "fake-mp3" {
		t.Fatalf("audio bytes = %q", audio.Bytes)
	}
	if audio.Format != "mp3" {
		t.Fatalf("format = %q, want mp3", audio.Format)
	}
}

func TestElevenLabsSynthesizeVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "key-123", BaseURL: srv.URL})
	if _, err := s.Synthesize(context.Background(), "hi", Params{VoiceID: "v"}); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestElevenLabsRequiresVoice(t *testing.T) {
	s := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "key"})
	if _, err := s.Synthesize(context.Background(), "hi", Params{}); err == nil {
		t.Fatalf("expected error without voice id")
	}
}
