package textgen

import (
	"context"
	"strings"
	"testing"

	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

func alice(t *testing.T) persona.Profile {
	t.Helper()
	for _, p := range persona.Defaults("voice-a", "voice-b") {
		if p.ID == "alice" {
			return p
		}
	}
	t.Fatal("alice not in defaults")
	return persona.Profile{}
}

func TestStaticUsesPhraseBank(t *testing.T) {
	g := NewStatic()
	p := alice(t)
	out, err := g.Generate(context.Background(), Prompt{
		Persona: p,
		Kind:    trigger.KindPreStart,
		Context: trigger.WorkoutContext{Exercise: "bench press"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, line := range p.PhraseBank[trigger.KindPreStart] {
		if out == line {
			found = true
		}
	}
	if !found {
		t.Fatalf("output %q not drawn from phrase bank", out)
	}
}

func TestStaticRotatesBySetNumber(t *testing.T) {
	g := NewStatic()
	p := alice(t)
	seen := map[string]bool{}
	for set := 1; set <= 3; set++ {
		out, err := g.Generate(context.Background(), Prompt{
			Persona: p,
			Kind:    trigger.KindSetStart,
			Context: trigger.WorkoutContext{SetNumber: set, Reps: 8},
		})
		if err != nil {
			t.Fatalf("Generate set %d: %v", set, err)
		}
		seen[out] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected rotation across sets, got %v", seen)
	}
}

func TestStaticStrainFeedback(t *testing.T) {
	g := NewStatic()
	p := alice(t)
	out, err := g.Generate(context.Background(), Prompt{
		Persona: p,
		Kind:    trigger.KindSetEnd,
		Context: trigger.WorkoutContext{Reps: 10, Strain: 85},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "intense") {
		t.Fatalf("high strain feedback missing from %q", out)
	}
}

func TestStaticFallsBackWithoutBank(t *testing.T) {
	g := NewStatic()
	out, err := g.Generate(context.Background(), Prompt{
		Persona: persona.Profile{ID: "bare"},
		Kind:    trigger.KindSetEnd,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, persona.Fallback(trigger.KindSetEnd)) {
		t.Fatalf("expected fallback line, got %q", out)
	}
}

func TestFactoryModes(t *testing.T) {
	if _, err := New(Config{Mode: "openai"}); err == nil {
		t.Fatal("openai mode without key should fail")
	}
	g, err := New(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("auto mode: %v", err)
	}
	if _, ok := g.(*StaticGenerator); !ok {
		t.Fatalf("auto without key should pick static, got %T", g)
	}
	g, err = New(Config{Mode: "auto", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("auto mode with key: %v", err)
	}
	if _, ok := g.(*OpenAIGenerator); !ok {
		t.Fatalf("auto with key should pick openai, got %T", g)
	}
	if _, err := New(Config{Mode: "bogus"}); err == nil {
		t.Fatal("unknown mode should fail")
	}
}
