package normalize

import (
	"regexp"
	"strings"
)

// boilerplate phrases carry no institute identity; patterns run on punctuation-free lowercase text
// padded with a single space on each side
var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(` (?:for|on behalf of) the(?: [\pL\pN]+){1,4} collaboration `),
	regexp.MustCompile(` (?:dept|department|school|faculty) of physics(?: and astronomy)? `),
	regexp.MustCompile(` physics (?:dept|department) `),
	regexp.MustCompile(` dept `),
}

// stripBoilerplate removes boilerplate phrases until a pass changes nothing
// removal can splice a new match together so a single pass is not enough for idempotence
func stripBoilerplate(s string) string {
	cur := " " + collapseSpaces(s) + " "
	for {
		next := cur
		for _, re := range boilerplate {
			// matches share their padding spaces, so loop each pattern to catch neighbours
			for {
				out := re.ReplaceAllString(next, "  ")
				if out == next {
					break
				}
				next = " " + collapseSpaces(out) + " "
			}
		}
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
}
