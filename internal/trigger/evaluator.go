package trigger

import "errors"

// ErrInvalidTrigger is returned when the trigger kind itself is unknown.
// Every other failed condition is a silent skip, never an error: coaching
// is best-effort and must not block the workout flow.
var ErrInvalidTrigger = errors.New("unknown trigger kind")

// Decision is the outcome of evaluating one trigger firing.
type Decision struct {
	Eligible bool
	Priority int
	MaxWords int
	Voice    bool
}

// Evaluator validates trigger firings against the loaded definitions.
type Evaluator struct {
	defs map[Kind]Definition
}

func NewEvaluator(defs []Definition) *Evaluator {
	m := make(map[Kind]Definition, len(defs))
	for _, d := range defs {
		m[d.Kind] = d
	}
	return &Evaluator{defs: m}
}

// Definition returns the loaded definition for a kind.
func (e *Evaluator) Definition(kind Kind) (Definition, bool) {
	d, ok := e.defs[kind]
	return d, ok
}

// Evaluate checks a firing against the definition's activation conditions.
// Pure validation, no side effects.
func (e *Evaluator) Evaluate(kind Kind, tier Tier, ctx WorkoutContext) (Decision, error) {
	def, ok := e.defs[kind]
	if !ok {
		return Decision{}, ErrInvalidTrigger
	}
	if !def.Active {
		return Decision{}, nil
	}
	if !tierAllowed(def.AllowedTiers, tier) {
		return Decision{}, nil
	}
	if ctx.Phase != "" && !phaseAllowed(def.AllowedPhases, ctx.Phase) {
		return Decision{}, nil
	}
	return Decision{
		Eligible: true,
		Priority: def.PriorityWeight,
		MaxWords: def.MaxWords,
		Voice:    def.VoiceCapable,
	}, nil
}

func tierAllowed(allowed []Tier, tier Tier) bool {
	for _, t := range allowed {
		if t == tier {
			return true
		}
	}
	return false
}

func phaseAllowed(allowed []Phase, phase Phase) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, p := range allowed {
		if p == phase {
			return true
		}
	}
	return false
}
