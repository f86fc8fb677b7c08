// Package instdb holds the institute-name to country table
// Keys are normalized before every read and write, and the first mapping registered for a key wins
package instdb

import (
	"sort"

	"qmtrends/internal/core/normalize"
	perr "qmtrends/internal/platform/errors"
)

// Vocabulary canonicalizes country labels; *rulepack.Pack satisfies it
type Vocabulary interface {
	Canonical(s string) (string, bool)
}

// Entry is one institute and every raw spelling seen for it
type Entry struct {
	Key     string
	Country string
	Aliases []string // raw strings in first-seen order
}

// Conflict records a registration that disagreed with the stored mapping
type Conflict struct {
	Key      string
	Existing string
	Proposed string
	Alias    string
}

// Err converts the conflict into a coded error for logs and reports
func (c Conflict) Err() error {
	return perr.Conflictf("institute %q maps to %s, refusing %s (alias %q)", c.Key, c.Existing, c.Proposed, c.Alias)
}

// DB is the institute table; it is not safe for concurrent writers
type DB struct {
	vocab     Vocabulary
	entries   map[string]*Entry
	conflicts []Conflict
}

// New returns an empty table that accepts only countries vocab knows
func New(vocab Vocabulary) *DB {
	return &DB{vocab: vocab, entries: map[string]*Entry{}}
}

// Lookup returns the country stored for key; key may be raw or already normalized
func (d *DB) Lookup(key string) (string, bool) {
	e, ok := d.entries[normalize.Key(key)]
	if !ok {
		return "", false
	}
	return e.Country, true
}

// Entry returns a copy of the entry for key
func (d *DB) Entry(key string) (Entry, bool) {
	e, ok := d.entries[normalize.Key(key)]
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: e.Key, Country: e.Country, Aliases: append([]string(nil), e.Aliases...)}, true
}

// Register maps key to country unless key already maps somewhere else.
// registered is true only when a new key was added; a same-country call just records the alias.
// A differing country leaves the table unchanged and returns the recorded conflict
func (d *DB) Register(key, country, alias string) (registered bool, conflict *Conflict, err error) {
	k := normalize.Key(key)
	if k == "" {
		return false, nil, perr.InvalidArgf("instdb: empty key for alias %q", alias)
	}
	c, ok := d.vocab.Canonical(country)
	if !ok {
		return false, nil, perr.InvalidArgf("instdb: country %q not in vocabulary", country)
	}

	if e, exists := d.entries[k]; exists {
		if e.Country != c {
			cf := Conflict{Key: k, Existing: e.Country, Proposed: c, Alias: alias}
			d.conflicts = append(d.conflicts, cf)
			return false, &cf, nil
		}
		e.addAlias(alias)
		return false, nil, nil
	}

	e := &Entry{Key: k, Country: c}
	e.addAlias(alias)
	d.entries[k] = e
	return true, nil, nil
}

// Conflicts returns every conflict recorded so far in order
func (d *DB) Conflicts() []Conflict {
	return append([]Conflict(nil), d.conflicts...)
}

// Len reports the number of keys
func (d *DB) Len() int { return len(d.entries) }

// Entries returns copies of all entries sorted by key
func (d *DB) Entries() []Entry {
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, Entry{Key: e.Key, Country: e.Country, Aliases: append([]string(nil), e.Aliases...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e *Entry) addAlias(alias string) {
	if alias == "" {
		return
	}
	for _, a := range e.Aliases {
		if a == alias {
			return
		}
	}
	e.Aliases = append(e.Aliases, alias)
}
