package session

import (
	"testing"

	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/talk"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	p, err := rulepack.Load()
	if err != nil {
		t.Fatalf("rulepack.Load: %v", err)
	}
	return New(p)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	c := newClassifier(t)

	tests := []struct {
		name                string
		typ, session, title string
		want                talk.PresentationType
	}{
		{"contribution type wins", "Poster", "Plenary Session III", "Jets", talk.Poster},
		{"plenary session", "", "Plenary Session III", "Jets at the LHC", talk.Plenary},
		{"parallel by label", "", "Parallel: Collective dynamics", "Flow", talk.Parallel},
		{"track", "", "Track 2 - Heavy flavor", "Charm", talk.Parallel},
		{"flash", "Flash talk", "", "Best poster", talk.Flash},
		{"poster precedes flash", "", "Poster highlight session", "X", talk.Poster},
		{"poster title", "", "", "Poster: thermal photons", talk.Poster},
		{"keynote", "Keynote", "", "Opening talk", talk.Plenary},
		{"nothing", "", "Jets and high pT", "Quenching", talk.UnknownType},
		{"empty", "", "", "", talk.UnknownType},
		{"case and accents", "PLÉNARY", "", "", talk.Plenary},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.typ, tc.session, tc.title); got != tc.want {
				t.Fatalf("Classify(%q,%q,%q) = %q, want %q", tc.typ, tc.session, tc.title, got, tc.want)
			}
		})
	}
}

func TestExcluded(t *testing.T) {
	t.Parallel()
	c := newClassifier(t)

	tests := []struct {
		session, title string
		want           bool
	}{
		{"Opening", "Welcome address", true},
		{"Plenary Session I", "Zimanyi Medal ceremony", true},
		{"", "Closing remarks", true},
		{"Plenary Session I", "Overview of ALICE results", false},
		{"Parallel", "Awarding energy loss", false},
		{"", "", false},
	}
	for _, tc := range tests {
		if got := c.Excluded(tc.session, tc.title); got != tc.want {
			t.Errorf("Excluded(%q,%q) = %v, want %v", tc.session, tc.title, got, tc.want)
		}
	}
}
