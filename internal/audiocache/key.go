package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/adaptivefit/coachpipe/internal/speech"
	"github.com/adaptivefit/coachpipe/internal/trigger"
)

// Key identifies cacheable audio by content, never by user. Two requests
// producing byte-identical speech share one entry regardless of who asked.
type Key struct {
	PersonaID string
	Kind      trigger.Kind
	Text      string
	Voice     speech.Params
}

// Hash returns the deterministic content address for the key. Text is
// normalized first so incidental whitespace or casing differences do not
// duplicate synthesis work.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s|%.3f|%.3f",
		k.PersonaID,
		k.Kind,
		NormalizeText(k.Text),
		k.Voice.VoiceID,
		k.Voice.ModelID,
		k.Voice.Stability,
		k.Voice.SimilarityBoost,
	)))
	return hex.EncodeToString(sum[:])
}

// NormalizeText collapses whitespace and lowercases for keying. The spoken
// text itself is synthesized verbatim; only the cache address normalizes.
func NormalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
