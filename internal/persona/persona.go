package persona

import (
	"errors"
	"sort"

	"github.com/adaptivefit/coachpipe/internal/trigger"
)

var ErrUnknownPersona = errors.New("unknown persona")

// Profile is a named coaching voice and personality. Immutable during a
// request.
type Profile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	VoiceID         string  `json:"-"`
	Stability       float64 `json:"-"`
	SimilarityBoost float64 `json:"-"`

	Enthusiasm     float64 `json:"enthusiasm"`
	Supportiveness float64 `json:"supportiveness"`
	Directness     float64 `json:"directness"`

	// SystemStyle seeds the text generator's system prompt.
	SystemStyle string `json:"-"`
	// PhraseBank holds scripted lines per trigger kind, used by the static
	// generator and as style exemplars in prompts.
	PhraseBank map[trigger.Kind][]string `json:"-"`

	VoicePreviewPath string `json:"voice_preview_path"`
}

// Registry holds the loaded persona profiles, keyed by id.
type Registry struct {
	profiles map[string]Profile
}

func NewRegistry(profiles ...Profile) *Registry {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &Registry{profiles: m}
}

func (r *Registry) Get(id string) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrUnknownPersona
	}
	return p, nil
}

// All returns every profile, ordered by id for stable API responses.
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Fallback returns the predefined safe response for a trigger kind. These
// lines are served when generation fails or content is blocked; they are
// persona-neutral and always allowed.
func Fallback(kind trigger.Kind) string {
	switch kind {
	case trigger.KindOnboarding:
		return "Welcome to AdaptiveFit! Let's get started on your fitness journey!"
	case trigger.KindPreStart:
		return "Ready to begin? You've got this!"
	case trigger.KindSetStart:
		return "Time to start your set. Focus and breathe!"
	case trigger.KindSetEnd:
		return "Great set! Keep up the momentum."
	case trigger.KindMusicSync:
		return "You're doing great! Keep pushing forward."
	case trigger.KindWorkoutEnd:
		return "Workout complete! Excellent effort today."
	default:
		return "Keep going! You're doing amazing!"
	}
}

// Defaults returns the two built-in coaching personas, Alice and Aiden.
func Defaults(aliceVoiceID, aidenVoiceID string) []Profile {
	return []Profile{
		{
			ID:              "alice",
			Name:            "Alice",
			Description:     "Enthusiastic and supportive coach",
			VoiceID:         aliceVoiceID,
			Stability:       0.75,
			SimilarityBoost: 0.75,
			Enthusiasm:      0.9,
			Supportiveness:  0.8,
			Directness:      0.6,
			SystemStyle:     "You are Alice, an enthusiastic and endlessly supportive fitness coach. Celebrate effort, keep cues short and warm, and never lecture.",
			PhraseBank: map[trigger.Kind][]string{
				trigger.KindPreStart:   {"Time to shine! Let's make this workout count.", "You showed up, and that's the hardest part. Let's go!"},
				trigger.KindSetStart:   {"Amazing energy! Focus and execute.", "You're crushing it! Own this set.", "Keep that energy up! Breathe steady."},
				trigger.KindSetEnd:     {"Fantastic form! That set was all you.", "I love your dedication! Shake it out and recover.", "Set complete, and you made it look easy!"},
				trigger.KindMusicSync:  {"Ride that beat! You're right in the zone.", "Perfect rhythm, keep it rolling!"},
				trigger.KindWorkoutEnd: {"Workout complete! You showed real dedication today.", "You finished strong! Time to rest and recover."},
			},
			VoicePreviewPath: "/audio/previews/alice.mp3",
		},
		{
			ID:              "aiden",
			Name:            "Aiden",
			Description:     "Direct and motivational coach",
			VoiceID:         aidenVoiceID,
			Stability:       0.8,
			SimilarityBoost: 0.7,
			Enthusiasm:      0.7,
			Supportiveness:  0.7,
			Directness:      0.9,
			SystemStyle:     "You are Aiden, a direct, no-nonsense fitness coach. Short punchy cues, high standards, zero fluff.",
			PhraseBank: map[trigger.Kind][]string{
				trigger.KindPreStart:   {"Lock in. This workout is yours to take.", "No warm-up for excuses. Let's move."},
				trigger.KindSetStart:   {"Focus and push through!", "Time to level up. Execute.", "This is where you grow. Go."},
				trigger.KindSetEnd:     {"Solid work. Reset and do it again.", "No excuses, just results. That was results.", "Own this moment. Recover smart."},
				trigger.KindMusicSync:  {"Match the tempo. Stay sharp.", "Beat drops, you drop reps. Keep pace."},
				trigger.KindWorkoutEnd: {"Done. That's how you finish a session.", "Work's banked. Recovery is part of the job."},
			},
			VoicePreviewPath: "/audio/previews/aiden.mp3",
		},
	}
}
