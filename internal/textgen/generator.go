// Package textgen produces the coaching line for a trigger firing. The
// orchestrator treats any failure here as recoverable: a generation error
// always degrades to a predefined fallback, never to a failed response.
package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

// Prompt carries everything a generator needs for one coaching line.
type Prompt struct {
	Persona  persona.Profile
	Kind     trigger.Kind
	Context  trigger.WorkoutContext
	MaxWords int
}

// Generator renders a coaching line. Implementations must honor ctx.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type Config struct {
	// Mode selects the backend: "openai", "static", or "auto" (openai when
	// a key is configured, static otherwise).
	Mode   string
	APIKey string
	Model  string
}

func New(cfg Config) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("textgen mode openai requires an api key")
		}
		return NewOpenAI(cfg.APIKey, cfg.Model), nil
	case "static":
		return NewStatic(), nil
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewOpenAI(cfg.APIKey, cfg.Model), nil
		}
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown textgen mode %q", cfg.Mode)
	}
}

// buildCue renders the trigger-specific instruction shared by backends. It
// mirrors the coaching script templates: short situational cues with
// strain-band feedback where physiology is available.
func buildCue(p Prompt) string {
	ctx := p.Context
	exercise := ctx.Exercise
	if exercise == "" {
		exercise = "your workout"
	}
	switch p.Kind {
	case trigger.KindOnboarding:
		return fmt.Sprintf("Welcome a new user to AdaptiveFit as %s, their coaching companion. Set the tone for their fitness journey.", p.Persona.Name)
	case trigger.KindPreStart:
		return fmt.Sprintf("The user is about to begin %s. Get them ready.", exercise)
	case trigger.KindSetStart:
		return fmt.Sprintf("Set %d of %s is starting: %d reps at %.0f lbs. Cue focus and execution.", ctx.SetNumber, exercise, ctx.Reps, ctx.Weight)
	case trigger.KindSetEnd:
		return fmt.Sprintf("The user finished %d %s reps. %s", ctx.Reps, exercise, strainFeedback(ctx.Strain))
	case trigger.KindMusicSync:
		return fmt.Sprintf("Strain %.0f%%, heart rate %d BPM, music is driving the pace. %s", ctx.Strain, ctx.HeartRate, strainAdvice(ctx.Strain))
	case trigger.KindWorkoutEnd:
		return fmt.Sprintf("Workout complete: %d sets done. Close the session and point them to recovery.", ctx.TotalSets)
	default:
		return fmt.Sprintf("Encourage the user mid-%s.", exercise)
	}
}

func strainFeedback(strain float64) string {
	switch {
	case strain > 80:
		return "That was intense! Perfect effort level."
	case strain > 60:
		return "Good intensity! Keep pushing."
	default:
		return "Room to push harder next set!"
	}
}

func strainAdvice(strain float64) string {
	switch {
	case strain > 85:
		return "You're in the red zone! Focus on breathing."
	case strain > 70:
		return "Perfect training zone! Maintain this pace."
	default:
		return "You can push harder! Increase intensity."
	}
}
