package indico

import "strings"

// exportResponse is the envelope of /export/event/{id}.json
type exportResponse struct {
	Count   int     `json:"count"`
	Results []event `json:"results" validate:"min=1"`
}

type event struct {
	Title         string         `json:"title"`
	Contributions []contribution `json:"contributions"`
}

// contribution keeps only the fields the pipeline reads; the export carries many more
type contribution struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Type           string   `json:"type"`
	Session        string   `json:"session"`
	Track          string   `json:"track"`
	Speakers       []person `json:"speakers"`
	PersonLinks    []person `json:"person_links"`
	PrimaryAuthors []person `json:"primary_authors"`
}

type person struct {
	FullName    string `json:"fullName"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// presenter returns the first listed speaker, falling back to person links then primary authors
func (c contribution) presenter() (person, bool) {
	for _, list := range [][]person{c.Speakers, c.PersonLinks, c.PrimaryAuthors} {
		if len(list) > 0 {
			return list[0], true
		}
	}
	return person{}, false
}

// displayName prefers fullName, then "first last", then name
func (p person) displayName() string {
	if s := strings.TrimSpace(p.FullName); s != "" {
		return s
	}
	if s := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)); s != "" {
		return s
	}
	return strings.TrimSpace(p.Name)
}

// sessionLabel is the session title, or the track when the event has no sessions
func (c contribution) sessionLabel() string {
	if s := strings.TrimSpace(c.Session); s != "" {
		return s
	}
	return strings.TrimSpace(c.Track)
}
