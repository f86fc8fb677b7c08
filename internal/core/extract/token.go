package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isWord reports whether r belongs inside a token.
// Letters, numbers, combining marks and connector punctuation count; everything else separates
func isWord(r rune) bool {
	if r == utf8.RuneError || r == 0 {
		return false
	}
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Pc)
}

// onBoundary reports whether [start,end) of s is a run of whole tokens
func onBoundary(s string, start, end int) bool {
	if start < 0 || end > len(s) || start >= end {
		return false
	}
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWord(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWord(r) {
			return false
		}
	}
	return true
}

// tokens splits a normalized key on non-word runes
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWord(r) })
}

// mask blanks every whole-token occurrence of the phrases in s, keeping byte offsets stable
func mask(s string, phrases []string) string {
	if len(phrases) == 0 || s == "" {
		return s
	}
	b := []byte(s)
	for _, p := range phrases {
		if p == "" {
			continue
		}
		from := 0
		for {
			i := strings.Index(s[from:], p)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(p)
			if onBoundary(s, start, end) {
				for j := start; j < end; j++ {
					b[j] = ' '
				}
			}
			from = start + 1
		}
	}
	return string(b)
}
