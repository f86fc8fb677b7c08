package resolve

import (
	"sort"

	"qmtrends/internal/core/talk"
)

// SpeakerIndex remembers directly resolved affiliations per speaker and year.
// It is append-only and the first affiliation stored for a (speaker, year) pair wins
type SpeakerIndex struct {
	bySpeaker map[string]map[int]talk.Affiliation
	n         int
}

// NewSpeakerIndex returns an empty index
func NewSpeakerIndex() *SpeakerIndex {
	return &SpeakerIndex{bySpeaker: map[string]map[int]talk.Affiliation{}}
}

// Add stores a for speaker in year and reports whether it was stored.
// Empty speakers, unresolved values and cross-referenced values are never stored
func (x *SpeakerIndex) Add(speaker string, year int, a talk.Affiliation) bool {
	if speaker == "" || !a.Resolved() || a.Confidence == talk.CrossReferenced || a.Confidence == talk.None {
		return false
	}
	years, ok := x.bySpeaker[speaker]
	if !ok {
		years = map[int]talk.Affiliation{}
		x.bySpeaker[speaker] = years
	}
	if _, taken := years[year]; taken {
		return false
	}
	years[year] = a
	x.n++
	return true
}

// Nearest returns the stored affiliation closest to year; ties go to the earlier year
func (x *SpeakerIndex) Nearest(speaker string, year int) (talk.Affiliation, int, bool) {
	years, ok := x.bySpeaker[speaker]
	if !ok || len(years) == 0 {
		return talk.Affiliation{}, 0, false
	}
	best, bestDist, found := 0, 0, false
	for y := range years {
		d := y - year
		if d < 0 {
			d = -d
		}
		if !found || d < bestDist || (d == bestDist && y < best) {
			best, bestDist, found = y, d, true
		}
	}
	return years[best], best, true
}

// Years lists the years stored for speaker in ascending order
func (x *SpeakerIndex) Years(speaker string) []int {
	out := make([]int, 0, len(x.bySpeaker[speaker]))
	for y := range x.bySpeaker[speaker] {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Len is the number of stored (speaker, year) pairs
func (x *SpeakerIndex) Len() int { return x.n }
