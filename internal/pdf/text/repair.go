package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	hyphenBreakRe  = regexp.MustCompile(`(\pL+)-[ \t]*\n[ \t]*(\pL+)`)
	paragraphSplit = regexp.MustCompile(`\n[ \t]*\n`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	vowelRe        = regexp.MustCompile(`(?i)[aeiouyàâäéèêëîïôöùûü]`)
)

// RepairHyphenation rejoins words split across lines with a hyphen. The
// joined word must be 2 to 30 letters long and contain a vowel; otherwise
// the hyphen is genuine and kept, with the line break removed.
func RepairHyphenation(s string) string {
	return hyphenBreakRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := hyphenBreakRe.FindStringSubmatch(m)
		joined := parts[1] + parts[2]
		n := len([]rune(joined))
		if n >= 2 && n <= 30 && vowelRe.MatchString(joined) {
			return joined
		}
		return parts[1] + "-" + parts[2]
	})
}

// Normalize repairs hyphen-broken words, unwraps hard-wrapped lines inside
// paragraphs, collapses whitespace and keeps paragraph breaks as a blank
// line. Output is NFC normalized.
func Normalize(s string) string {
	s = norm.NFC.String(strings.ReplaceAll(s, "\r\n", "\n"))
	s = RepairHyphenation(s)

	paragraphs := paragraphSplit.Split(s, -1)
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(whitespaceRe.ReplaceAllString(p, " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
