package trigger

// Kind identifies a class of workout event that may produce coaching.
type Kind string

const (
	KindOnboarding Kind = "onboarding"
	KindPreStart   Kind = "pre-start"
	KindSetStart   Kind = "set-start"
	KindSetEnd     Kind = "set-end"
	KindMusicSync  Kind = "music-sync"
	KindWorkoutEnd Kind = "workout-end"
)

// Tier is a user subscription level.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// Weight orders tiers for dispatch priority. Unknown tiers rank lowest.
func (t Tier) Weight() int {
	switch t {
	case TierElite:
		return 3
	case TierPro:
		return 2
	case TierFree:
		return 1
	default:
		return 0
	}
}

// Phase is a coarse workout phase used by activation conditions.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseWarmup   Phase = "warmup"
	PhaseActive   Phase = "active"
	PhaseRest     Phase = "rest"
	PhaseComplete Phase = "complete"
)

// Definition describes one trigger class. Definitions are loaded at startup
// and read-only afterwards.
type Definition struct {
	Kind           Kind
	MaxWords       int
	PriorityWeight int
	AllowedTiers   []Tier
	AllowedPhases  []Phase
	VoiceCapable   bool
	Active         bool
}

// DeviceState captures the audio capabilities reported by the client.
type DeviceState struct {
	HasAudioOutput    bool `json:"has_audio_output"`
	HasEarbuds        bool `json:"has_earbuds"`
	FallbackToSpeaker bool `json:"fallback_to_speaker"`
}

// WorkoutContext is the exercise snapshot carried by a trigger firing.
type WorkoutContext struct {
	Exercise  string  `json:"exercise"`
	SetNumber int     `json:"set_number"`
	TotalSets int     `json:"total_sets"`
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
	Strain    float64 `json:"strain"`
	HeartRate int     `json:"heart_rate"`
	Phase     Phase   `json:"phase"`
}

// Defaults returns the built-in trigger definitions. Word budgets follow the
// coaching scripts: onboarding is long-form, in-set cues stay short.
func Defaults() []Definition {
	all := []Tier{TierFree, TierPro, TierElite}
	paid := []Tier{TierPro, TierElite}
	return []Definition{
		{
			Kind:           KindOnboarding,
			MaxWords:       80,
			PriorityWeight: 3,
			AllowedTiers:   all,
			AllowedPhases:  []Phase{PhaseIdle},
			VoiceCapable:   true,
			Active:         true,
		},
		{
			Kind:           KindPreStart,
			MaxWords:       30,
			PriorityWeight: 5,
			AllowedTiers:   all,
			AllowedPhases:  []Phase{PhaseIdle, PhaseWarmup},
			VoiceCapable:   true,
			Active:         true,
		},
		{
			Kind:           KindSetStart,
			MaxWords:       25,
			PriorityWeight: 8,
			AllowedTiers:   all,
			AllowedPhases:  []Phase{PhaseActive, PhaseRest},
			VoiceCapable:   true,
			Active:         true,
		},
		{
			Kind:           KindSetEnd,
			MaxWords:       25,
			PriorityWeight: 7,
			AllowedTiers:   all,
			AllowedPhases:  []Phase{PhaseActive, PhaseRest},
			VoiceCapable:   true,
			Active:         true,
		},
		{
			Kind:           KindMusicSync,
			MaxWords:       20,
			PriorityWeight: 4,
			AllowedTiers:   paid,
			AllowedPhases:  []Phase{PhaseActive},
			VoiceCapable:   true,
			Active:         true,
		},
		{
			Kind:           KindWorkoutEnd,
			MaxWords:       40,
			PriorityWeight: 6,
			AllowedTiers:   all,
			AllowedPhases:  []Phase{PhaseActive, PhaseRest, PhaseComplete},
			VoiceCapable:   true,
			Active:         true,
		},
	}
}
