// Package split segments a raw affiliation that may name several institutes
// Separator strength, strongest first: ";"  then "-" touching whitespace  then ","  then joiners
// (" and ", " & ", "/"). Only the strongest separator present outside parentheses is used
package split

import (
	"strings"
	"unicode"
)

// Segment is one candidate institute in source order
type Segment struct {
	Text    string   // trimmed segment text, parentheses included
	Name    string   // Text with parenthesized parts removed
	Aliases []string // parenthesized parts, eg "BNL"
	Sep     string   // raw separator after this segment including surrounding whitespace; "" on the last
}

type level int

const (
	levelNone level = iota
	levelJoiner
	levelComma
	levelDash
	levelSemicolon
)

// words that keep "and" inside a single name, eg "Science and Technology"
var fieldWords = map[string]bool{
	"science": true, "sciences": true, "technology": true, "physics": true, "astronomy": true,
	"astrophysics": true, "engineering": true, "mathematics": true, "research": true, "applied": true,
	"nuclear": true, "particle": true, "energy": true, "education": true, "arts": true, "letters": true,
	"medicine": true, "chemistry": true, "computing": true, "technologies": true,
}

// Split returns the candidate texts of raw in order; it never returns an empty slice
func Split(raw string) []string {
	segs := Segments(raw)
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// Segments splits raw at its strongest top-level separator
func Segments(raw string) []Segment {
	text := strings.TrimSpace(raw)
	cuts := separators(text)
	if len(cuts) == 0 {
		return []Segment{newSegment(text, "")}
	}

	best := levelNone
	for _, c := range cuts {
		if c.lvl > best {
			best = c.lvl
		}
	}

	var out []Segment
	start := 0
	for _, c := range cuts {
		if c.lvl != best {
			continue
		}
		part := text[start:c.start]
		sep := text[c.start:c.end]
		// leading or trailing separators stay attached so nothing is dropped
		if strings.TrimSpace(part) == "" && len(out) > 0 {
			out[len(out)-1].Sep += part + sep
			start = c.end
			continue
		}
		lead, body, trail := trimParts(part)
		if len(out) > 0 {
			out[len(out)-1].Sep += lead
		} else if lead != "" {
			body = lead + body
		}
		out = append(out, newSegment(body, trail+sep))
		start = c.end
	}
	rest := text[start:]
	if strings.TrimSpace(rest) == "" {
		if len(out) == 0 {
			return []Segment{newSegment(text, "")}
		}
		out[len(out)-1].Sep += rest
		return out
	}
	lead, body, _ := trimParts(rest)
	out[len(out)-1].Sep += lead
	out = append(out, newSegment(body, ""))
	return out
}

// Join rebuilds the text Segments was given, minus outer whitespace
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
		b.WriteString(s.Sep)
	}
	return b.String()
}

// SepKind names the separator after a segment: ";", "-", ",", "and" or ""
func (s Segment) SepKind() string {
	t := strings.TrimSpace(s.Sep)
	switch {
	case t == "":
		return ""
	case strings.HasPrefix(t, ";"):
		return ";"
	case strings.HasPrefix(t, "-"):
		return "-"
	case strings.HasPrefix(t, ","):
		return ","
	}
	return "and"
}

type cut struct {
	start, end int
	lvl        level
}

// separators finds every top-level separator with its strength
func separators(s string) []cut {
	var out []cut
	depth := 0
	rs := []rune(s)
	// byte offsets for each rune index
	offs := make([]int, len(rs)+1)
	o := 0
	for i, r := range rs {
		offs[i] = o
		o += len(string(r))
	}
	offs[len(rs)] = o

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 {
			continue
		}
		switch {
		case r == ';':
			out = append(out, cut{offs[i], offs[i+1], levelSemicolon})
		case r == ',':
			out = append(out, cut{offs[i], offs[i+1], levelComma})
		case r == '-' || r == '–' || r == '—':
			before := i > 0 && unicode.IsSpace(rs[i-1])
			after := i+1 < len(rs) && unicode.IsSpace(rs[i+1])
			if before || after {
				out = append(out, cut{offs[i], offs[i+1], levelDash})
			}
		case r == '/':
			if i > 0 && i+1 < len(rs) {
				out = append(out, cut{offs[i], offs[i+1], levelJoiner})
			}
		case r == '&':
			// "A&M" is one name, "BNL & SBU" is two
			if i > 0 && i+1 < len(rs) && unicode.IsSpace(rs[i-1]) && unicode.IsSpace(rs[i+1]) {
				out = append(out, cut{offs[i], offs[i+1], levelJoiner})
			}
		case unicode.IsSpace(r):
			if n := andAt(rs, i); n > 0 {
				out = append(out, cut{offs[i], offs[i+n], levelJoiner})
				i += n - 1
			}
		}
	}
	return out
}

// andAt reports the rune length of " and " starting at i, or 0 when it is not a split point
func andAt(rs []rune, i int) int {
	if i+5 > len(rs) {
		return 0
	}
	w := strings.ToLower(string(rs[i : i+5]))
	if w != " and " {
		return 0
	}
	prev := lastWord(rs[:i])
	next := firstWord(rs[i+5:])
	if prev == "" || next == "" || fieldWords[prev] || fieldWords[next] {
		return 0
	}
	return 4 // " and"; the trailing space is left to the next segment
}

func lastWord(rs []rune) string {
	end := len(rs)
	for end > 0 && !isWordRune(rs[end-1]) {
		end--
	}
	start := end
	for start > 0 && isWordRune(rs[start-1]) {
		start--
	}
	return strings.ToLower(string(rs[start:end]))
}

func firstWord(rs []rune) string {
	start := 0
	for start < len(rs) && !isWordRune(rs[start]) {
		start++
	}
	end := start
	for end < len(rs) && isWordRune(rs[end]) {
		end++
	}
	return strings.ToLower(string(rs[start:end]))
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// trimParts returns leading whitespace, trimmed body and trailing whitespace of s
func trimParts(s string) (lead, body, trail string) {
	body = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(body)]
	trimmed := strings.TrimRightFunc(body, unicode.IsSpace)
	trail = body[len(trimmed):]
	return lead, trimmed, trail
}

func newSegment(text, sep string) Segment {
	name, aliases := stripParens(text)
	return Segment{Text: text, Name: name, Aliases: aliases, Sep: sep}
}

// stripParens pulls top-level parenthesized parts out of s
func stripParens(s string) (string, []string) {
	if !strings.ContainsAny(s, "([") {
		return s, nil
	}
	var name strings.Builder
	var cur strings.Builder
	var aliases []string
	depth := 0
	for _, r := range s {
		switch {
		case r == '(' || r == '[':
			if depth > 0 {
				cur.WriteRune(r)
			}
			depth++
		case (r == ')' || r == ']') && depth > 0:
			depth--
			if depth == 0 {
				if a := strings.TrimSpace(cur.String()); a != "" {
					aliases = append(aliases, a)
				}
				cur.Reset()
			} else {
				cur.WriteRune(r)
			}
		case depth > 0:
			cur.WriteRune(r)
		default:
			name.WriteRune(r)
		}
	}
	// unbalanced opener keeps its text as an alias
	if a := strings.TrimSpace(cur.String()); depth > 0 && a != "" {
		aliases = append(aliases, a)
	}
	return strings.Join(strings.Fields(name.String()), " "), aliases
}
