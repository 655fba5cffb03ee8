package bioscan

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinSequenceLength is the exclusive lower bound on cleaned sequence length for
// queries and registrations.
const MinSequenceLength = 10

// NormalizeSequence cleans raw FASTA or free text into an uppercase residue string.
// Header lines (starting with '>') are dropped, the rest is joined, uppercased with
// full Unicode case mapping and stripped of everything outside A-Z.
func NormalizeSequence(raw string) string {
	var body strings.Builder
	for _, line := range splitLines(raw) {
		if strings.HasPrefix(line, ">") {
			continue
		}
		body.WriteString(line)
	}
	// Caser values keep state, so one per call.
	upper := cases.Upper(language.Und).String(body.String())
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, upper)
}

// ValidSequence reports whether a cleaned sequence is long enough to analyze or register.
func ValidSequence(seq string) bool {
	return len(seq) > MinSequenceLength
}

// splitLines breaks text on the universal newline set: \n, \r, \r\n, \v, \f,
// the ASCII file/group/record separators, NEL and the Unicode line and paragraph
// separators. Terminators are not kept.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
