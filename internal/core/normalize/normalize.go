// Package normalize turns free-text affiliation and speaker strings into stable lookup keys
// Pipeline order
// 1 drop control runes and invalid UTF-8
// 2 NFKD decomposition then strip combining and format marks
// 3 case fold and width fold, recompose NFC
// 4 transliterate Latin letters with no decomposition (ø ł æ ...)
// 5 collapse dotted acronyms eg u.s.a. -> usa
// 6 punctuation to spaces
// 7 strip boilerplate phrases until nothing changes
// 8 collapse whitespace and trim
package normalize

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer is concurrency safe when used with the pool below
type Normalizer struct{}

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// decomposition must run before mark removal or precomposed letters keep their accents
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			cases.Fold(),
			width.Fold,
			norm.NFC,
		)
	},
}

// letters NFKD leaves alone
var translit = strings.NewReplacer(
	"ø", "o", "ł", "l", "đ", "d", "ı", "i",
	"æ", "ae", "œ", "oe", "þ", "th", "ð", "d",
)

var acronymRe = regexp.MustCompile(`\b[a-z](?:\.[a-z])+\b\.?`)

// New constructs a Normalizer
func New() *Normalizer { return &Normalizer{} }

var std = New()

// Key normalizes s with the shared Normalizer
func Key(s string) string { return std.Normalize(s) }

// Normalize returns the lookup key for s following the pipeline described above
// Empty and whitespace-only input map to ""
func (n *Normalizer) Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	s = strings.ToValidUTF8(Sanitize(s), "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	ns = translit.Replace(ns)
	ns = acronymRe.ReplaceAllStringFunc(ns, func(m string) string {
		return strings.ReplaceAll(m, ".", "")
	})
	ns = stripPunct(ns)
	ns = stripBoilerplate(ns)

	return collapseSpaces(ns)
}

// stripPunct keeps letters and digits, drops apostrophes and maps anything else to a space
func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '`':
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims the edges
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
