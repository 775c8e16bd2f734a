package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// fingerprint is a similarity-preserving signature of a frame's
// aggregated text: the set of character trigrams over the normalized
// form. A single OCR character substitution perturbs at most three
// trigrams, so near-identical captures of the same slide stay close.
type fingerprint struct {
	grams map[string]struct{}
}

// normalizeForFingerprint folds the text into its comparable form:
// lowercase, every non-alphanumeric rune becomes a space, whitespace
// runs collapse to one space. This form feeds both the trigram set and
// the dedup key; the slide keeps the raw text untouched.
func normalizeForFingerprint(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func newFingerprint(norm string) fingerprint {
	grams := make(map[string]struct{})
	for _, word := range strings.Fields(norm) {
		runes := []rune(word)
		if len(runes) < 3 {
			// Short tokens carry no trigram; keep them whole so
			// single-word slides still compare.
			grams[word] = struct{}{}
			continue
		}
		for i := 0; i+3 <= len(runes); i++ {
			grams[string(runes[i:i+3])] = struct{}{}
		}
	}
	return fingerprint{grams: grams}
}

func (f fingerprint) empty() bool { return len(f.grams) == 0 }

// similarity is the Jaccard coefficient of the two trigram sets. Two
// empty fingerprints are identical by definition.
func (f fingerprint) similarity(other fingerprint) float64 {
	if len(f.grams) == 0 && len(other.grams) == 0 {
		return 1
	}
	if len(f.grams) == 0 || len(other.grams) == 0 {
		return 0
	}
	small, large := f.grams, other.grams
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for g := range small {
		if _, ok := large[g]; ok {
			inter++
		}
	}
	union := len(f.grams) + len(other.grams) - inter
	return float64(inter) / float64(union)
}

// dedupKey is the content fingerprint recorded on the emitted slide:
// hex SHA-256 of the normalized representative text.
func dedupKey(norm string) string {
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
