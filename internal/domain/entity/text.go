package entity

import (
	"strings"
	"unicode"
)

// NormalizeOCRText is the canonical cleanup applied to recognized text
// before it is stored on a TextBlock: control characters are stripped
// and whitespace runs are collapsed, line structure is kept, casing and
// punctuation are left alone because downstream consumers match on
// exact text.
func NormalizeOCRText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var b strings.Builder
		space := true
		for _, r := range line {
			if unicode.IsControl(r) {
				continue
			}
			if unicode.IsSpace(r) {
				if !space {
					b.WriteByte(' ')
					space = true
				}
				continue
			}
			b.WriteRune(r)
			space = false
		}
		if cleaned := strings.TrimSpace(b.String()); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return strings.Join(out, "\n")
}
