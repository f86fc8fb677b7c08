// Package audit flags aggregates and affiliations that deserve a manual look
package audit

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/normalize"
	"qmtrends/internal/core/talk"
)

// DefaultThreshold is the allowed gap in percentage points between a heuristic share and the baseline
const DefaultThreshold = 20.0

// Outlier kinds
const (
	KindYear    = "year"
	KindCountry = "country"
)

// Outlier is a year or country whose heuristic share strays from the dataset-wide share
type Outlier struct {
	Kind           string  `json:"kind"`
	Label          string  `json:"label"`
	Total          int     `json:"total"`
	HeuristicShare float64 `json:"heuristic_share"`
	Delta          float64 `json:"delta"`
}

// Report is the outlier summary written next to the stats
type Report struct {
	Threshold float64   `json:"threshold"`
	Baseline  float64   `json:"baseline"`
	Outliers  []Outlier `json:"outliers"`
}

// Outliers compares the Heuristic plus University share of every year and country against the
// dataset-wide share. Non-positive thresholds fall back to DefaultThreshold
func Outliers(t aggregate.Table, threshold float64) Report {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	rep := Report{Threshold: threshold, Baseline: heuristicShare(t.Confidence)}
	if t.Total == 0 {
		return rep
	}

	check := func(kind, label string, total int, conf []aggregate.Share) {
		if total == 0 {
			return
		}
		s := heuristicShare(conf)
		d := s - rep.Baseline
		if math.Abs(d) > threshold {
			rep.Outliers = append(rep.Outliers, Outlier{Kind: kind, Label: label, Total: total, HeuristicShare: s, Delta: d})
		}
	}
	for _, y := range t.Years {
		check(KindYear, strconv.Itoa(y.Year), y.Total, y.Confidence)
	}
	for _, c := range t.CountryDetail {
		check(KindCountry, c.Country, c.Total, c.Confidence)
	}
	return rep
}

func heuristicShare(conf []aggregate.Share) float64 {
	var p float64
	for _, s := range conf {
		if talk.Confidence(s.Label).Heuristical() {
			p += s.Percent
		}
	}
	return p
}

// Pattern names in report order
const (
	PatternCollaboration     = "contains collaboration"
	PatternUniversityNoPlace = "university without country"
	PatternComma             = "contains comma"
	PatternEmpty             = "empty"
)

// PatternNames lists every pattern in report order
var PatternNames = []string{PatternCollaboration, PatternUniversityNoPlace, PatternComma, PatternEmpty}

var collabRe = regexp.MustCompile(`\bcollab(oration)?s?\b`)

// Patterns tallies affiliation patterns among talks resolved to country; an empty country means all talks
func Patterns(talks []talk.Resolved, country string) []aggregate.Share {
	counts := map[string]int{}
	total := 0
	for _, rt := range talks {
		if country != "" && rt.Affiliation.Country != country {
			continue
		}
		total++
		for _, p := range match(rt) {
			counts[p]++
		}
	}
	out := make([]aggregate.Share, 0, len(PatternNames))
	for _, p := range PatternNames {
		var pct float64
		if total > 0 {
			pct = 100 * float64(counts[p]) / float64(total)
		}
		out = append(out, aggregate.Share{Label: p, Count: counts[p], Percent: pct})
	}
	return out
}

// PatternsAll keys the all-talks tally in PatternReport
const PatternsAll = "all"

// PatternReport tallies patterns over all talks and again for every country outlier in rep
func PatternReport(talks []talk.Resolved, rep Report) map[string][]aggregate.Share {
	out := map[string][]aggregate.Share{PatternsAll: Patterns(talks, "")}
	for _, o := range rep.Outliers {
		if o.Kind != KindCountry {
			continue
		}
		if _, ok := out[o.Label]; !ok {
			out[o.Label] = Patterns(talks, o.Label)
		}
	}
	return out
}

// match returns the patterns rt exhibits
func match(rt talk.Resolved) []string {
	raw := rt.RawAffiliation
	if strings.TrimSpace(raw) == "" {
		return []string{PatternEmpty}
	}
	key := normalize.Key(raw)
	var out []string
	if collabRe.MatchString(strings.ToLower(raw)) {
		out = append(out, PatternCollaboration)
	}
	if hasToken(key, "university") && rt.Affiliation.Confidence != talk.Exact {
		out = append(out, PatternUniversityNoPlace)
	}
	if strings.Contains(raw, ",") {
		out = append(out, PatternComma)
	}
	return out
}

// Suspicious returns up to n talks of country decided by keyword tables or naming a collaboration
func Suspicious(talks []talk.Resolved, country string, n int) []talk.Resolved {
	var out []talk.Resolved
	for _, rt := range talks {
		if n > 0 && len(out) >= n {
			break
		}
		if country != "" && rt.Affiliation.Country != country {
			continue
		}
		if rt.Affiliation.Confidence.Heuristical() || collabRe.MatchString(strings.ToLower(rt.RawAffiliation)) {
			out = append(out, rt)
		}
	}
	return out
}

func hasToken(key, tok string) bool {
	for _, f := range strings.Fields(key) {
		if f == tok {
			return true
		}
	}
	return false
}
