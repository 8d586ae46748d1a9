package textgen

import (
	"context"
	"fmt"

	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

// StaticGenerator renders lines from the persona phrase banks without any
// network dependency. It backs local development and the degraded path when
// no model key is configured.
type StaticGenerator struct{}

func NewStatic() *StaticGenerator {
	return &StaticGenerator{}
}

func (s *StaticGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	opener := pickPhrase(p.Persona, p.Kind, p.Context.SetNumber)
	ctx := p.Context
	switch p.Kind {
	case trigger.KindSetStart:
		if ctx.Reps > 0 {
			return fmt.Sprintf("%s %d reps, stay controlled.", opener, ctx.Reps), nil
		}
	case trigger.KindSetEnd:
		return fmt.Sprintf("%s %s", opener, strainFeedback(ctx.Strain)), nil
	case trigger.KindMusicSync:
		return fmt.Sprintf("%s %s", opener, strainAdvice(ctx.Strain)), nil
	case trigger.KindWorkoutEnd:
		if ctx.TotalSets > 0 {
			return fmt.Sprintf("%s %d sets in the books.", opener, ctx.TotalSets), nil
		}
	}
	return opener, nil
}

// pickPhrase rotates through the bank by set number so consecutive sets in
// one session don't repeat the same line back to back.
func pickPhrase(prof persona.Profile, kind trigger.Kind, setNumber int) string {
	bank := prof.PhraseBank[kind]
	if len(bank) == 0 {
		return persona.Fallback(kind)
	}
	if setNumber < 0 {
		setNumber = 0
	}
	return bank[setNumber%len(bank)]
}
