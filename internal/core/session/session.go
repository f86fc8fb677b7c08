// Package session classifies contributions into presentation types and drops ceremonial ones
package session

import (
	"strings"

	"qmtrends/internal/core/normalize"
	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/talk"
)

// keyword precedence when several types match the same text
var order = []talk.PresentationType{talk.Poster, talk.Flash, talk.Plenary, talk.Parallel}

// Classifier maps programme text to a PresentationType
type Classifier struct {
	words   map[talk.PresentationType][]string
	exclude []string
}

// New builds a classifier from the pack's session vocabulary
func New(p *rulepack.Pack) *Classifier {
	c := &Classifier{words: map[talk.PresentationType][]string{}}
	for _, typ := range order {
		c.words[typ] = p.Sessions[string(typ)]
	}
	c.exclude = p.Sessions["exclude"]
	return c
}

// Classify looks at the contribution type first, then the session label, then the title.
// Titles only decide posters since talk titles rarely name their slot
func (c *Classifier) Classify(contribType, sessionLabel, title string) talk.PresentationType {
	if t, ok := c.match(normalize.Key(contribType)); ok {
		return t
	}
	if t, ok := c.match(normalize.Key(sessionLabel)); ok {
		return t
	}
	if contains(normalize.Key(title), c.words[talk.Poster]) {
		return talk.Poster
	}
	return talk.UnknownType
}

// Excluded reports ceremonial or administrative contributions such as openings and award sessions
func (c *Classifier) Excluded(sessionLabel, title string) bool {
	return contains(normalize.Key(sessionLabel), c.exclude) || contains(normalize.Key(title), c.exclude)
}

func (c *Classifier) match(key string) (talk.PresentationType, bool) {
	if key == "" {
		return "", false
	}
	for _, typ := range order {
		if contains(key, c.words[typ]) {
			return typ, true
		}
	}
	return "", false
}

// contains reports whether any word appears in key as whole tokens
func contains(key string, words []string) bool {
	if key == "" {
		return false
	}
	padded := " " + key + " "
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}
