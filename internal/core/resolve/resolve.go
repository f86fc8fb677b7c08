// Package resolve turns talk records into resolved affiliations.
// Pass 1 extracts each non-empty affiliation directly and learns speakers.
// Pass 2 fills empty or unresolved affiliations from the same speaker in the nearest year
package resolve

import (
	"strings"

	"qmtrends/internal/core/extract"
	"qmtrends/internal/core/instdb"
	"qmtrends/internal/core/normalize"
	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/split"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/platform/logger"
)

// RuleCrossRef names results filled from another year of the same speaker
const RuleCrossRef = "crossref"

// Diagnostic is one result worth a manual look
type Diagnostic struct {
	Year       int             `json:"year"`
	Conference string          `json:"conference"`
	Title      string          `json:"title"`
	Speaker    string          `json:"speaker"`
	Raw        string          `json:"raw_affiliation"`
	Country    string          `json:"country"`
	Confidence talk.Confidence `json:"confidence"`
	Rule       string          `json:"rule"`
}

// Resolver owns the institute database and speaker index for one run; it is not safe for concurrent use
type Resolver struct {
	db    *instdb.DB
	index *SpeakerIndex
	ext   *extract.Extractor
	log   *logger.Logger

	diags []Diagnostic
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger overrides the component logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// New builds a Resolver over db; learned entries are written back into db
func New(p *rulepack.Pack, db *instdb.DB, opts ...Option) *Resolver {
	r := &Resolver{
		db:    db,
		index: NewSpeakerIndex(),
		ext:   extract.New(p, db),
		log:   logger.Named("resolve"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// DB returns the owned institute database
func (r *Resolver) DB() *instdb.DB { return r.db }

// Index returns the owned speaker index
func (r *Resolver) Index() *SpeakerIndex { return r.index }

// Extractor returns the rule table in use
func (r *Resolver) Extractor() *extract.Extractor { return r.ext }

// Diagnostics returns every diagnostic emitted so far in emission order
func (r *Resolver) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), r.diags...)
}

// Resolve handles a single record against the index as it stands
func (r *Resolver) Resolve(rec talk.Record) talk.Affiliation {
	a := r.direct(rec)
	if !a.Resolved() {
		a = r.crossReference(rec, a)
	}
	r.index.Add(normalize.SpeakerKey(rec.SpeakerName), rec.Year, a)
	r.diagnose(rec, a)
	return a
}

// ResolveAll resolves every record in two passes; output order equals input order
func (r *Resolver) ResolveAll(recs []talk.Record) []talk.Resolved {
	out := make([]talk.Resolved, len(recs))
	var pending []int

	for i, rec := range recs {
		var a talk.Affiliation
		if strings.TrimSpace(rec.RawAffiliation) == "" {
			a = talk.UnknownAffiliation(rec.RawAffiliation, "", nil)
		} else {
			a = r.direct(rec)
		}
		if a.Resolved() {
			r.index.Add(normalize.SpeakerKey(rec.SpeakerName), rec.Year, a)
		} else {
			pending = append(pending, i)
		}
		out[i] = talk.Resolved{Record: rec, Affiliation: a}
	}

	filled := 0
	for _, i := range pending {
		a := r.crossReference(out[i].Record, out[i].Affiliation)
		if a.Confidence == talk.CrossReferenced {
			filled++
		}
		out[i].Affiliation = a
	}

	counts := map[talk.Confidence]int{}
	for _, rt := range out {
		counts[rt.Affiliation.Confidence]++
		r.diagnose(rt.Record, rt.Affiliation)
	}

	ev := r.log.Info().Int("talks", len(out)).Int("pending", len(pending)).Int("crossref", filled).
		Int("instdb", r.db.Len()).Int("speakers", r.index.Len())
	for _, c := range talk.Confidences {
		ev = ev.Int(strings.ToLower(string(c)), counts[c])
	}
	ev.Msg("resolve: done")
	return out
}

// direct extracts candidates of the raw affiliation in order; the first non-Unknown wins
func (r *Resolver) direct(rec talk.Record) talk.Affiliation {
	raw := rec.RawAffiliation
	key := normalize.Key(raw)
	if key == "" {
		return talk.UnknownAffiliation(raw, key, nil)
	}

	var trail []talk.Attempt
	for _, c := range r.Candidates(raw) {
		res := r.ext.Extract(c)
		trail = append(trail, talk.Attempt{
			Candidate:  c.Raw,
			Key:        c.Key(),
			Country:    res.Country,
			Confidence: res.Confidence,
			Rule:       res.Rule,
		})
		if res.Confidence == talk.None {
			continue
		}
		if res.Confidence == talk.Exact || res.Confidence == talk.Database {
			r.learn(c, res.Country)
		}
		return talk.Affiliation{
			Raw:        raw,
			Key:        key,
			Institute:  institute(c),
			Country:    res.Country,
			Confidence: res.Confidence,
			Rule:       res.Rule,
			Trail:      trail,
		}
	}
	return talk.UnknownAffiliation(raw, key, trail)
}

// Candidates splits raw and folds comma-separated country or city segments into the segment before them
func (r *Resolver) Candidates(raw string) []extract.Candidate {
	segs := split.Segments(raw)
	out := make([]extract.Candidate, 0, len(segs))
	for i, s := range segs {
		if i > 0 && len(out) > 0 && segs[i-1].SepKind() == "," && r.ext.IsQualifier(s.Text) {
			last := &out[len(out)-1]
			last.Raw += segs[i-1].Sep + s.Text
			last.Qualifiers = append(last.Qualifiers, s.Text)
			continue
		}
		out = append(out, extract.FromSegment(s))
	}

	// a trailing ", <country>" belongs to the primary institute even when a locality sits in between
	if n := len(segs); n > 1 && len(out) > 1 && segs[n-2].SepKind() == "," {
		last := segs[n-1]
		if _, ok := r.ext.Country(last.Text); ok {
			if p := primary(out[:len(out)-1]); p != nil {
				p.Raw += segs[n-2].Sep + last.Text
				p.Qualifiers = append(p.Qualifiers, last.Text)
			}
		}
	}
	return out
}

// primary is the first candidate with a name left after boilerplate, eg not a bare "Dept. of Physics"
func primary(cs []extract.Candidate) *extract.Candidate {
	for i := range cs {
		if cs[i].NameKey() != "" {
			return &cs[i]
		}
	}
	return nil
}

// crossReference borrows the nearest-year direct result of the same speaker
func (r *Resolver) crossReference(rec talk.Record, prev talk.Affiliation) talk.Affiliation {
	sk := normalize.SpeakerKey(rec.SpeakerName)
	if sk == "" {
		return prev
	}
	donor, year, ok := r.index.Nearest(sk, rec.Year)
	if !ok {
		return prev
	}
	return talk.Affiliation{
		Raw:        rec.RawAffiliation,
		Key:        prev.Key,
		Institute:  donor.Institute,
		Country:    donor.Country,
		Confidence: talk.CrossReferenced,
		SourceYear: year,
		Rule:       RuleCrossRef,
		Trail:      prev.Trail,
	}
}

// learn registers the candidate key when the database does not know it yet.
// The bare name key is learned too only when the name itself carries the country;
// a country taken from a qualifier or a parenthesized code says nothing about the bare name
func (r *Resolver) learn(c extract.Candidate, country string) {
	keys := []string{c.Key()}
	if nk := c.NameKey(); nk != keys[0] && len(c.Qualifiers) == 0 {
		if named, ok := r.ext.NamedCountry(c); ok && named == country {
			keys = append(keys, nk)
		}
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, known := r.db.Lookup(k); known {
			continue
		}
		added, cf, err := r.db.Register(k, country, c.Raw)
		switch {
		case err != nil:
			r.log.Warn().Err(err).Str("key", k).Msg("resolve: register failed")
		case cf != nil:
			r.log.Warn().Err(cf.Err()).Str("key", k).Msg("resolve: institute conflict")
		case added:
			r.log.Debug().Str("key", k).Str("country", country).Msg("resolve: learned institute")
		}
	}
}

func (r *Resolver) diagnose(rec talk.Record, a talk.Affiliation) {
	if !a.Confidence.Heuristical() && a.Confidence != talk.None {
		return
	}
	r.diags = append(r.diags, Diagnostic{
		Year:       rec.Year,
		Conference: rec.ConferenceID,
		Title:      rec.Title,
		Speaker:    rec.SpeakerName,
		Raw:        rec.RawAffiliation,
		Country:    a.Country,
		Confidence: a.Confidence,
		Rule:       a.Rule,
	})
}

func institute(c extract.Candidate) string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(c.Raw); n != "" {
		return n
	}
	return talk.Unknown
}
