// Package extract maps one candidate institute to a country through an ordered rule table.
// Tiers run strongest first and the first rule that fires decides
package extract

import (
	"strings"

	"qmtrends/internal/core/normalize"
	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/split"
	"qmtrends/internal/core/talk"
)

// Lookuper is the read side of the institute database
type Lookuper interface {
	Lookup(key string) (string, bool)
}

// Candidate is one institute mention, possibly carrying folded qualifier segments
type Candidate struct {
	Raw        string   // text as written, qualifiers included
	Name       string   // primary segment without parenthesized parts
	Aliases    []string // parenthesized parts of the primary segment
	Qualifiers []string // trailing country or city segments folded in
}

// FromSegment builds a candidate from a single split segment
func FromSegment(s split.Segment) Candidate {
	return Candidate{Raw: s.Text, Name: s.Name, Aliases: append([]string(nil), s.Aliases...)}
}

// Key is the normalized form of Raw
func (c Candidate) Key() string { return normalize.Key(c.Raw) }

// NameKey is the normalized form of Name
func (c Candidate) NameKey() string { return normalize.Key(c.Name) }

// Result is the outcome of Extract; Rule and Term are empty when nothing fired
type Result struct {
	Country    string
	Confidence talk.Confidence
	Rule       string
	Term       string
}

// Rule is one entry of the ordered table
type Rule struct {
	Name string
	Tier talk.Confidence
	// Match returns the country and the matched term
	Match func(c Candidate) (country, term string, ok bool)
}

// Extractor holds compiled tables; it is safe for concurrent use when the Lookuper is
type Extractor struct {
	pack *rulepack.Pack
	db   Lookuper

	aliases    *acAutomaton
	heuristics *acAutomaton
	university *acAutomaton

	qualifiers map[string]struct{}
	countries  map[string]string // normalized country alias -> canonical
	rules      []Rule
}

// New compiles the pack tables and binds db for the Database tier; db may be nil
func New(p *rulepack.Pack, db Lookuper) *Extractor {
	e := &Extractor{pack: p, db: db, qualifiers: map[string]struct{}{}, countries: map[string]string{}}

	e.aliases = compile(p.Aliases)
	e.heuristics = compile(p.Heuristics)
	e.university = compile(p.University)

	for _, t := range p.Aliases {
		e.qualifiers[t.Term] = struct{}{}
		e.countries[t.Term] = t.Country
	}
	for _, t := range p.Heuristics {
		if t.Kind == "city" {
			e.qualifiers[t.Term] = struct{}{}
		}
	}

	e.rules = []Rule{
		{Name: "exact.iso", Tier: talk.Exact, Match: e.matchISO},
		{Name: "exact.alias", Tier: talk.Exact, Match: e.matchAlias},
		{Name: "database", Tier: talk.Database, Match: e.matchDatabase},
		{Name: "heuristic", Tier: talk.Heuristic, Match: e.matchHeuristic},
		{Name: "university", Tier: talk.University, Match: e.matchUniversity},
	}
	return e
}

func compile(ts []rulepack.Term) *acAutomaton {
	a := newAutomaton()
	for i, t := range ts {
		a.add(t.Term, i)
	}
	a.build()
	return a
}

// Rules returns the ordered table
func (e *Extractor) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Extract runs the rules in order and returns the first hit, or an Unknown result
func (e *Extractor) Extract(c Candidate) Result {
	deny := e.Denylisted(c)
	for _, r := range e.rules {
		if deny && r.Tier.Heuristical() {
			continue
		}
		if country, term, ok := r.Match(c); ok {
			return Result{Country: country, Confidence: r.Tier, Rule: r.Name, Term: term}
		}
	}
	return Result{Country: talk.Unknown, Confidence: talk.None}
}

// Denylisted reports collaboration names, which say nothing about a speaker's institute
func (e *Extractor) Denylisted(c Candidate) bool {
	for _, k := range []string{c.Key(), c.NameKey()} {
		if _, ok := e.pack.Experiments[k]; ok {
			return true
		}
		for _, tok := range tokens(k) {
			if _, ok := e.pack.CollabTokens[tok]; ok {
				return true
			}
		}
	}
	return false
}

// IsQualifier reports whether key is only a country or a known city
func (e *Extractor) IsQualifier(key string) bool {
	key = normalize.Key(key)
	if key == "" {
		return false
	}
	if _, ok := e.qualifiers[key]; ok {
		return true
	}
	_, ok := e.pack.Canonical(key)
	return ok
}

// Country reports whether s is only a country name; ISO codes do not count, "CA" is as often California
func (e *Extractor) Country(s string) (string, bool) {
	c, ok := e.countries[normalize.Key(s)]
	return c, ok
}

// NamedCountry returns the country alias found in the candidate name alone, ignoring
// parenthesized parts and folded qualifiers
func (e *Extractor) NamedCountry(c Candidate) (string, bool) {
	country, _, ok := e.matchAlias(Candidate{Raw: c.Name})
	return country, ok
}

// matchISO accepts an upper-case ISO code in parentheses closing the raw text, eg "Mainz (DE)"
func (e *Extractor) matchISO(c Candidate) (string, string, bool) {
	raw := strings.TrimSpace(c.Raw)
	if !strings.HasSuffix(raw, ")") {
		return "", "", false
	}
	open := strings.LastIndexByte(raw, '(')
	if open < 0 {
		return "", "", false
	}
	code := strings.TrimSpace(raw[open+1 : len(raw)-1])
	if len(code) < 2 || len(code) > 3 || strings.ToUpper(code) != code {
		return "", "", false
	}
	country, ok := e.pack.ISO(code)
	return country, code, ok
}

// matchAlias finds the last country name in the key after masking shadowed phrases.
// Aliases of two letters or fewer only count as the trailing token
func (e *Extractor) matchAlias(c Candidate) (string, string, bool) {
	key := mask(c.Key(), e.pack.Shadows)
	tail := len(strings.TrimRight(key, " "))

	var kept []span
	for _, m := range e.aliases.scan(key) {
		if m.end-m.start <= 2 && m.end != tail {
			continue
		}
		kept = append(kept, m)
	}
	m, ok := rightmostLongest(kept)
	if !ok {
		return "", "", false
	}
	t := e.pack.Aliases[m.id]
	return t.Country, t.Term, true
}

// matchDatabase tries the full key, then the name key, then each alias
func (e *Extractor) matchDatabase(c Candidate) (string, string, bool) {
	if e.db == nil {
		return "", "", false
	}
	keys := []string{c.Key(), c.NameKey()}
	for _, a := range c.Aliases {
		keys = append(keys, normalize.Key(a))
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if country, ok := e.db.Lookup(k); ok {
			return country, k, true
		}
	}
	return "", "", false
}

func (e *Extractor) matchHeuristic(c Candidate) (string, string, bool) {
	m, ok := leftmostLongest(e.heuristics.scan(c.Key()))
	if !ok {
		return "", "", false
	}
	t := e.pack.Heuristics[m.id]
	return t.Country, t.Term, true
}

func (e *Extractor) matchUniversity(c Candidate) (string, string, bool) {
	m, ok := leftmostLongest(e.university.scan(c.Key()))
	if !ok {
		return "", "", false
	}
	t := e.pack.University[m.id]
	return t.Country, t.Term, true
}
