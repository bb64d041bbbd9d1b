package transcript

import (
	"regexp"
	"strings"
)

var pronounI = regexp.MustCompile(`\bi\b`)

func capitalizePronounI(text string) string {
	matches := pronounI.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		out.WriteString(text[last:start])
		if partOfDottedAbbreviation(text, start, end) {
			out.WriteString(text[start:end])
		} else {
			out.WriteByte('I')
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

// partOfDottedAbbreviation matches the i in forms like "i.e." and "e.i.".
func partOfDottedAbbreviation(text string, start int, end int) bool {
	if end+1 < len(text) && text[end] == '.' && isASCIILetter(text[end+1]) {
		return true
	}
	return start > 1 && text[start-1] == '.' && isASCIILetter(text[start-2])
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
