// Package rulepack loads and compiles the embedded affiliation vocabulary from rules.yaml.
// It prepares the closed country vocabulary, keyword tables and denylists for the extractor
package rulepack

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"qmtrends/internal/core/normalize"
)

//go:embed rules.yaml
var embedded []byte

type rawCountry struct {
	Name    string   `yaml:"name"`
	ISO     []string `yaml:"iso"`
	Aliases []string `yaml:"aliases"`
}

type rawHeuristic struct {
	Country string   `yaml:"country"`
	Kind    string   `yaml:"kind"`
	Terms   []string `yaml:"terms"`
}

type rawUniversity struct {
	Country  string   `yaml:"country"`
	States   []string `yaml:"states"`
	Patterns []string `yaml:"patterns"`
	Terms    []string `yaml:"terms"`
}

type rawCollab struct {
	Tokens      []string `yaml:"tokens"`
	Experiments []string `yaml:"experiments"`
}

type rawPack struct {
	Version        int                 `yaml:"version"`
	Countries      []rawCountry        `yaml:"countries"`
	Shadows        []string            `yaml:"shadows"`
	Heuristics     []rawHeuristic      `yaml:"heuristics"`
	University     rawUniversity       `yaml:"university"`
	Collaborations rawCollab           `yaml:"collaborations"`
	Institutes     []Institute         `yaml:"institutes"`
	Sessions       map[string][]string `yaml:"sessions"`
}

// Term is one normalized keyword and the country it points at
type Term struct {
	Term    string
	Country string
	Kind    string // "alias" | "lab" | "institution" | "city" | "university"
}

// Institute is a curated name to country pair
type Institute struct {
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
}

// Pack is the compiled vocabulary
type Pack struct {
	Version int

	// Countries holds canonical names in file order
	Countries []string

	// Aliases are normalized country names, canonical names included
	Aliases []Term

	// Shadows are normalized phrases masked before alias matching
	Shadows []string

	// Heuristics are lab, institution and city keywords
	Heuristics []Term

	// University are US university-name tails
	University []Term

	// CollabTokens mark a candidate as a collaboration when present as a token
	CollabTokens map[string]struct{}
	// Experiments mark a candidate as a collaboration when they are the whole key
	Experiments map[string]struct{}

	// Institutes seed the institute database
	Institutes []Institute

	// Sessions maps a presentation type (or "exclude") to normalized keywords
	Sessions map[string][]string

	canonical map[string]string // normalized alias or canonical -> canonical
	iso       map[string]string // upper ISO code -> canonical
}

// Load returns the compiled pack from the embedded rules.yaml
func Load() (*Pack, error) {
	return Parse(embedded)
}

// Parse compiles a pack from YAML bytes
func Parse(b []byte) (*Pack, error) {
	var rp rawPack
	if err := yaml.Unmarshal(b, &rp); err != nil {
		return nil, fmt.Errorf("rulepack: parse rules.yaml: %w", err)
	}
	if len(rp.Countries) == 0 {
		return nil, fmt.Errorf("rulepack: no countries")
	}

	p := &Pack{
		Version:      rp.Version,
		CollabTokens: map[string]struct{}{},
		Experiments:  map[string]struct{}{},
		Sessions:     map[string][]string{},
		canonical:    map[string]string{},
		iso:          map[string]string{},
	}

	for _, c := range rp.Countries {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("rulepack: country with empty name")
		}
		if _, dup := p.canonical[normalize.Key(name)]; dup {
			return nil, fmt.Errorf("rulepack: duplicate country %q", name)
		}
		p.Countries = append(p.Countries, name)
		for _, a := range append([]string{name}, c.Aliases...) {
			k := normalize.Key(a)
			if k == "" {
				continue
			}
			if prev, ok := p.canonical[k]; ok && prev != name {
				return nil, fmt.Errorf("rulepack: alias %q claimed by %s and %s", a, prev, name)
			}
			p.canonical[k] = name
		}
		for _, code := range c.ISO {
			p.iso[strings.ToUpper(strings.TrimSpace(code))] = name
		}
	}
	for k, name := range p.canonical {
		p.Aliases = append(p.Aliases, Term{Term: k, Country: name, Kind: "alias"})
	}
	sortTerms(p.Aliases)

	p.Shadows = keys(rp.Shadows)

	for _, h := range rp.Heuristics {
		country, ok := p.Canonical(h.Country)
		if !ok {
			return nil, fmt.Errorf("rulepack: heuristic country %q not in vocabulary", h.Country)
		}
		for _, t := range keys(h.Terms) {
			p.Heuristics = append(p.Heuristics, Term{Term: t, Country: country, Kind: h.Kind})
		}
	}
	sortTerms(p.Heuristics)

	uni, err := compileUniversity(p, rp.University)
	if err != nil {
		return nil, err
	}
	p.University = uni

	for _, t := range keys(rp.Collaborations.Tokens) {
		p.CollabTokens[t] = struct{}{}
	}
	for _, t := range keys(rp.Collaborations.Experiments) {
		p.Experiments[t] = struct{}{}
	}

	for _, in := range rp.Institutes {
		country, ok := p.Canonical(in.Country)
		if !ok {
			return nil, fmt.Errorf("rulepack: institute %q country %q not in vocabulary", in.Name, in.Country)
		}
		p.Institutes = append(p.Institutes, Institute{Name: in.Name, Country: country})
	}

	for typ, words := range rp.Sessions {
		p.Sessions[strings.ToLower(typ)] = keys(words)
	}

	return p, nil
}

func compileUniversity(p *Pack, u rawUniversity) ([]Term, error) {
	if len(u.States) == 0 && len(u.Terms) == 0 {
		return nil, nil
	}
	country, ok := p.Canonical(u.Country)
	if !ok {
		return nil, fmt.Errorf("rulepack: university country %q not in vocabulary", u.Country)
	}
	raw := append([]string(nil), u.Terms...)
	for _, pat := range u.Patterns {
		if !strings.Contains(pat, "{state}") {
			return nil, fmt.Errorf("rulepack: university pattern %q lacks {state}", pat)
		}
		for _, s := range u.States {
			raw = append(raw, strings.ReplaceAll(pat, "{state}", s))
		}
	}
	out := make([]Term, 0, len(raw))
	for _, t := range keys(raw) {
		out = append(out, Term{Term: t, Country: country, Kind: "university"})
	}
	sortTerms(out)
	return out, nil
}

// Canonical maps a country name, alias or ISO code to its canonical name
func (p *Pack) Canonical(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if c, ok := p.iso[strings.ToUpper(s)]; ok && len(s) <= 3 {
		return c, true
	}
	c, ok := p.canonical[normalize.Key(s)]
	return c, ok
}

// ISO maps an upper-case ISO code to its canonical country
func (p *Pack) ISO(code string) (string, bool) {
	c, ok := p.iso[code]
	return c, ok
}

// Known reports whether name is a canonical country
func (p *Pack) Known(name string) bool {
	c, ok := p.canonical[normalize.Key(name)]
	return ok && c == name
}

// keys normalizes, drops empties and dedupes while keeping first-seen order
func keys(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := normalize.Key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// sortTerms keeps compiled tables deterministic regardless of map iteration
func sortTerms(ts []Term) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Term != ts[j].Term {
			return ts[i].Term < ts[j].Term
		}
		return ts[i].Country < ts[j].Country
	})
}
