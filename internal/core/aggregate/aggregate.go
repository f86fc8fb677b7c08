// Package aggregate reduces resolved talks into per-year, per-type and overall tables
package aggregate

import (
	"sort"

	"qmtrends/internal/core/talk"
)

// Share is one labelled count with its percentage of the enclosing total
type Share struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// YearStats summarizes one conference year
type YearStats struct {
	Year            int     `json:"year"`
	Total           int     `json:"total"`
	Countries       []Share `json:"countries"`
	Institutes      []Share `json:"institutes"`
	Confidence      []Share `json:"confidence"`
	HHI             float64 `json:"hhi"`       // over all country shares, Unknown included
	HHIKnown        float64 `json:"hhi_known"` // over resolved countries only
	UniqueCountries int     `json:"unique_countries"`
}

// TypeStats summarizes one presentation type across all years
type TypeStats struct {
	Type      talk.PresentationType `json:"type"`
	Total     int                   `json:"total"`
	Countries []Share               `json:"countries"`
}

// CountryStats is the confidence breakdown of one country across all years
type CountryStats struct {
	Country    string  `json:"country"`
	Total      int     `json:"total"`
	Confidence []Share `json:"confidence"`
}

// Table is the full aggregation result
type Table struct {
	Total         int            `json:"total"`
	Years         []YearStats    `json:"years"`
	Types         []TypeStats    `json:"types"`
	Countries     []Share        `json:"countries"`
	Confidence    []Share        `json:"confidence"`
	CountryDetail []CountryStats `json:"country_detail"`
}

// Year returns the stats for y
func (t Table) Year(y int) (YearStats, bool) {
	for _, ys := range t.Years {
		if ys.Year == y {
			return ys, true
		}
	}
	return YearStats{}, false
}

type options struct {
	years []int
}

// Option configures Aggregate
type Option func(*options)

// Years makes the listed years appear even when they have no talks
func Years(ys ...int) Option {
	return func(o *options) { o.years = append(o.years, ys...) }
}

type counter map[string]int

// Aggregate is a pure reduction over talks
func Aggregate(talks []talk.Resolved, opts ...Option) Table {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	yearCountry := map[int]counter{}
	yearInst := map[int]counter{}
	yearConf := map[int]counter{}
	typeCountry := map[talk.PresentationType]counter{}
	overall := counter{}
	overallConf := counter{}
	countryConf := map[string]counter{}

	for _, y := range o.years {
		ensure(yearCountry, y)
		ensure(yearInst, y)
		ensure(yearConf, y)
	}

	for _, rt := range talks {
		a := rt.Affiliation
		country := orUnknown(a.Country)
		inst := orUnknown(a.Institute)
		conf := a.Confidence
		if conf == "" {
			conf = talk.None
		}
		typ := rt.PresentationType
		if typ == "" {
			typ = talk.UnknownType
		}

		ensure(yearCountry, rt.Year)[country]++
		ensure(yearInst, rt.Year)[inst]++
		ensure(yearConf, rt.Year)[string(conf)]++
		if typeCountry[typ] == nil {
			typeCountry[typ] = counter{}
		}
		typeCountry[typ][country]++
		overall[country]++
		overallConf[string(conf)]++
		if countryConf[country] == nil {
			countryConf[country] = counter{}
		}
		countryConf[country][string(conf)]++
	}

	out := Table{Total: len(talks)}

	years := make([]int, 0, len(yearCountry))
	for y := range yearCountry {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		cc := yearCountry[y]
		total := sum(cc)
		ys := YearStats{
			Year:       y,
			Total:      total,
			Countries:  shares(cc, total),
			Institutes: shares(yearInst[y], total),
			Confidence: confidenceShares(yearConf[y], total),
			HHI:        hhi(cc, false),
			HHIKnown:   hhi(cc, true),
		}
		for c, n := range cc {
			if c != talk.Unknown && n > 0 {
				ys.UniqueCountries++
			}
		}
		out.Years = append(out.Years, ys)
	}

	for _, typ := range talk.PresentationTypes {
		cc, ok := typeCountry[typ]
		if !ok {
			continue
		}
		total := sum(cc)
		out.Types = append(out.Types, TypeStats{Type: typ, Total: total, Countries: shares(cc, total)})
	}

	out.Countries = shares(overall, out.Total)
	out.Confidence = confidenceShares(overallConf, out.Total)
	for _, sh := range out.Countries {
		out.CountryDetail = append(out.CountryDetail, CountryStats{
			Country:    sh.Label,
			Total:      sh.Count,
			Confidence: confidenceShares(countryConf[sh.Label], sh.Count),
		})
	}
	return out
}

func ensure(m map[int]counter, y int) counter {
	c, ok := m[y]
	if !ok {
		c = counter{}
		m[y] = c
	}
	return c
}

func orUnknown(s string) string {
	if s == "" {
		return talk.Unknown
	}
	return s
}

func sum(c counter) int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

// shares sorts by count descending then label
func shares(c counter, total int) []Share {
	out := make([]Share, 0, len(c))
	for label, n := range c {
		out = append(out, Share{Label: label, Count: n, Percent: percent(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// confidenceShares lists every tier in tier order, zeros included
func confidenceShares(c counter, total int) []Share {
	out := make([]Share, 0, len(talk.Confidences))
	for _, conf := range talk.Confidences {
		n := c[string(conf)]
		out = append(out, Share{Label: string(conf), Count: n, Percent: percent(n, total)})
	}
	return out
}

// hhi is the sum of squared shares as a fraction in [0,1]; 0 when there is nothing to count
func hhi(c counter, knownOnly bool) float64 {
	total := 0
	for label, n := range c {
		if knownOnly && label == talk.Unknown {
			continue
		}
		total += n
	}
	if total == 0 {
		return 0
	}
	// sorted labels keep the float sum bit-identical across runs
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var h float64
	for _, label := range labels {
		if knownOnly && label == talk.Unknown {
			continue
		}
		s := float64(c[label]) / float64(total)
		h += s * s
	}
	return h
}
