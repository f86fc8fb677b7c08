// Package talk defines the records that flow through the affiliation pipeline
package talk

import "strconv"

// Unknown is the terminal label for both institutes and countries
const Unknown = "Unknown"

// PresentationType classifies a contribution slot in the programme
type PresentationType string

// PresentationType values
const (
	Plenary     PresentationType = "plenary"
	Parallel    PresentationType = "parallel"
	Poster      PresentationType = "poster"
	Flash       PresentationType = "flash"
	UnknownType PresentationType = "unknown"
)

// PresentationTypes lists every type in report order
var PresentationTypes = []PresentationType{Plenary, Parallel, Poster, Flash, UnknownType}

// Confidence is the tier that decided a country
type Confidence string

// Confidence tiers, strongest first
const (
	Exact           Confidence = "Exact"
	Database        Confidence = "Database"
	Heuristic       Confidence = "Heuristic"
	University      Confidence = "University" // bare university-name tails, discounted separately
	CrossReferenced Confidence = "CrossReferenced"
	None            Confidence = "Unknown"
)

// Confidences lists every tier strongest first
var Confidences = []Confidence{Exact, Database, Heuristic, University, CrossReferenced, None}

// Rank orders tiers, lower is stronger; unrecognized values rank last
func (c Confidence) Rank() int {
	for i, x := range Confidences {
		if x == c {
			return i
		}
	}
	return len(Confidences)
}

// Heuristical reports tiers decided by keyword tables rather than explicit evidence
func (c Confidence) Heuristical() bool { return c == Heuristic || c == University }

// Record is one contribution as fetched from the event system; immutable once built
type Record struct {
	Year             int              `json:"year" validate:"required,gte=1900,lte=2200"`
	ConferenceID     string           `json:"conference_id" validate:"required"`
	SessionLabel     string           `json:"session_label,omitempty"`
	PresentationType PresentationType `json:"presentation_type" validate:"required,oneof=plenary parallel poster flash unknown"`
	Title            string           `json:"title"`
	SpeakerName      string           `json:"speaker_name"`
	RawAffiliation   string           `json:"raw_affiliation"`
	Abstract         string           `json:"abstract,omitempty"`
}

// Attempt records one candidate tried during resolution
type Attempt struct {
	Candidate  string     `json:"candidate"`
	Key        string     `json:"key"`
	Country    string     `json:"country"`
	Confidence Confidence `json:"confidence"`
	Rule       string     `json:"rule,omitempty"`
}

// Affiliation is the resolved institute and country for one record
// values are never patched; re-resolution builds a new one
type Affiliation struct {
	Raw        string     `json:"raw_affiliation"`
	Key        string     `json:"normalized_key"`
	Institute  string     `json:"institute"`
	Country    string     `json:"country"`
	Confidence Confidence `json:"confidence"`
	SourceYear int        `json:"source_year,omitempty"` // donor year for cross-referenced values
	Rule       string     `json:"rule,omitempty"`
	Trail      []Attempt  `json:"trail,omitempty"`
}

// Resolved reports whether a country other than Unknown was found
func (a Affiliation) Resolved() bool { return a.Country != "" && a.Country != Unknown }

// UnknownAffiliation is the terminal value for raw
func UnknownAffiliation(raw, key string, trail []Attempt) Affiliation {
	return Affiliation{
		Raw:        raw,
		Key:        key,
		Institute:  Unknown,
		Country:    Unknown,
		Confidence: None,
		Trail:      trail,
	}
}

// Resolved pairs a record with its affiliation
type Resolved struct {
	Record
	Affiliation Affiliation `json:"affiliation"`
}

// Conference names one edition to fetch from the event system
type Conference struct {
	Year     int    `yaml:"year" json:"year" validate:"required,gte=1900,lte=2200"`
	IndicoID string `yaml:"indico_id" json:"indico_id" validate:"required,indico_id"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
}

// Label is the short conference name used in logs and reports, e.g. "QM2019"
func (c Conference) Label() string { return "QM" + strconv.Itoa(c.Year) }
