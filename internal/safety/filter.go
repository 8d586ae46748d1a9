// Package safety screens generated coaching text before it can be cached,
// synthesized, or shown. Blocking is an expected outcome, not a fault: the
// filter is a total function that substitutes a predefined safe line and
// reports the substitution, never an error.
package safety

import (
	"regexp"
	"strings"

	"github.com/adaptivefit/coachpipe/internal/persona"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

var (
	// Coaching that tells users to train through pain or injury.
	painPushPattern = regexp.MustCompile(`(?i)\b(push|train|work|power)\s+(through|past|into)\s+(the\s+)?(pain|injury|tear|strain)\b`)
	// Anything that reads as medical or pharmaceutical advice.
	medicalPattern = regexp.MustCompile(`(?i)\b(diagnos\w*|prescri\w*|medication|painkillers?|steroids?|dosage|ibuprofen)\b`)
	// Disordered-eating and starvation framing.
	eatingPattern = regexp.MustCompile(`(?i)\b(starv\w*|purge|skip\s+meals?|burn\s+off\s+(that|the|your)\s+(food|meal|calories))\b`)
	// Self-harm phrasing has no place in a coaching cue of any register.
	selfHarmPattern = regexp.MustCompile(`(?i)\b(hurt|punish|destroy)\s+(yourself|your\s+body)\b`)
	profanityPattern = regexp.MustCompile(`(?i)\b(fuck\w*|shit\w*|bitch\w*|asshole)\b`)
	// PII should never appear in generated coaching; treat it as unsafe
	// rather than redacting, since the text is cached by content.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

var blockPatterns = []*regexp.Regexp{
	painPushPattern,
	medicalPattern,
	eatingPattern,
	selfHarmPattern,
	profanityPattern,
	emailPattern,
	phonePattern,
}

// Filter screens text destined for a given trigger kind. On any blocklist or
// heuristic match it returns the predefined fallback line for that kind and
// blocked=true. Deterministic, no I/O.
func Filter(kind trigger.Kind, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return persona.Fallback(kind), true
	}
	for _, p := range blockPatterns {
		if p.MatchString(trimmed) {
			return persona.Fallback(kind), true
		}
	}
	if overIntense(trimmed) {
		return persona.Fallback(kind), true
	}
	return trimmed, false
}

// overIntense is a cheap heuristic for unsafe intensity: text that stacks
// maximal-effort imperatives while mentioning pain or failure symptoms.
func overIntense(text string) bool {
	lower := strings.ToLower(text)
	mentionsSymptom := strings.Contains(lower, "pain") ||
		strings.Contains(lower, "dizzy") ||
		strings.Contains(lower, "numb") ||
		strings.Contains(lower, "chest")
	if !mentionsSymptom {
		return false
	}
	intensity := 0
	for _, cue := range []string{"max out", "no matter what", "never stop", "ignore", "don't quit", "one more"} {
		if strings.Contains(lower, cue) {
			intensity++
		}
	}
	return intensity >= 1
}
