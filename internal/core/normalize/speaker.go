package normalize

import (
	"regexp"
	"strings"
)

var (
	// titles and suffixes that vary between submissions of the same person
	nameNoise = map[string]bool{
		"dr": true, "prof": true, "professor": true, "mr": true, "mrs": true, "ms": true,
		"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "phd": true, "md": true,
	}

	// nobiliary particles stay attached to the family name
	particles = map[string]bool{
		"van": true, "von": true, "de": true, "del": true, "della": true, "di": true, "da": true,
		"le": true, "la": true, "du": true, "des": true, "den": true, "der": true, "ter": true,
		"ten": true, "dos": true, "das": true, "al": true, "el": true, "ibn": true, "bin": true,
	}

	invertedName = regexp.MustCompile(`^([^,]+),\s*(.+)$`)
)

// SpeakerKey returns a key identifying a person across conference years
// "Doe, Jane", "Jane Doe" and "Dr. Jane DOE" share the key "doe jane"
func SpeakerKey(name string) string {
	name = strings.TrimSpace(Sanitize(name))
	if name == "" {
		return ""
	}

	var family, given []string
	if m := invertedName.FindStringSubmatch(name); m != nil {
		family = nameTokens(m[1])
		given = nameTokens(m[2])
	} else {
		toks := nameTokens(name)
		if len(toks) == 0 {
			return ""
		}
		cut := len(toks) - 1
		for cut > 0 && particles[toks[cut-1]] {
			cut--
		}
		given, family = toks[:cut], toks[cut:]
	}

	return collapseSpaces(strings.Join(family, " ") + " " + strings.Join(given, " "))
}

// nameTokens normalizes s and drops titles and suffixes
func nameTokens(s string) []string {
	var out []string
	for _, t := range strings.Fields(Key(s)) {
		if !nameNoise[t] {
			out = append(out, t)
		}
	}
	return out
}
