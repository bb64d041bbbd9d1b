package transcript

import (
	"strings"
	"unicode"
)

// Lowercased without trailing dot.
var abbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "approx": {},
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "st": {}, "jr": {}, "sr": {},
}

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	capitalize := true

	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			if capitalize {
				runes[i] = unicode.ToUpper(r)
			}
			capitalize = false
		case unicode.IsDigit(r):
			capitalize = false
		case r == '!' || r == '?':
			capitalize = closesSentence(runes, i)
		case r == '.':
			capitalize = closesSentence(runes, i) && !abbreviationEndsAt(runes, i)
		}
	}
	return string(runes)
}

// closesSentence reports whether the terminator at i is followed by a break.
func closesSentence(runes []rune, i int) bool {
	for j := i + 1; j < len(runes); j++ {
		r := runes[j]
		if unicode.IsSpace(r) {
			return true
		}
		if !isClosingRune(r) {
			return false
		}
	}
	return true
}

func abbreviationEndsAt(runes []rune, dot int) bool {
	start := dot
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(strings.Trim(string(runes[start:dot]), "."))
	_, ok := abbreviations[token]
	return ok
}

func isClosingRune(r rune) bool {
	switch r {
	case ')', ']', '}', '\'', '"', '’', '”', '.', '!', '?':
		return true
	default:
		return false
	}
}
