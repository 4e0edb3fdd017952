package scrape

import "strings"

// extractJSONObject returns the balanced JSON object starting at the
// first '{' at or after start. Brace depth is tracked with a small
// state machine that knows when the scan is inside a string literal and
// when the next character is escaped, so braces inside string values
// never affect the depth. Naive bracket matching cannot bound an object
// embedded in surrounding HTML/script text.
func extractJSONObject(text string, start int) (string, bool) {
	if start < 0 || start > len(text) {
		return "", false
	}
	objStart := strings.Index(text[start:], "{")
	if objStart < 0 {
		return "", false
	}
	objStart += start

	depth := 0
	inString := false
	escaped := false
	for i := objStart; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[objStart : i+1], true
			}
		}
	}
	return "", false
}
