// Package domain holds the pipeline types and ports
package domain

import (
	"time"

	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/audit"
	"qmtrends/internal/core/instdb"
	"qmtrends/internal/core/resolve"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/core/version"
)

// Resolved is one talk with its affiliation
type Resolved = talk.Resolved

// Fetch is the outcome of fetching one conference
type Fetch struct {
	Conference talk.Conference `json:"conference"`
	Talks      int             `json:"talks"`
	Error      string          `json:"error,omitempty"`
	ElapsedMS  int64           `json:"elapsed_ms"`
}

// Failed reports an upstream failure for the conference
func (f Fetch) Failed() bool { return f.Error != "" }

// Run is the header row of one pipeline run
type Run struct {
	ID          string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Build       version.BuildInfo `json:"build"`
	Fetches     []Fetch           `json:"fetches"`
	Talks       int               `json:"talks"`
	Unknown     int               `json:"unknown"`
	Diagnostics int               `json:"diagnostics"`
	Conflicts   int               `json:"conflicts"`
	InstDB      InstDBSummary     `json:"instdb"`
}

// InstDBSummary describes the institute table a run used
type InstDBSummary struct {
	Seeded    int `json:"seeded"`
	Loaded    int `json:"loaded"`
	Malformed int `json:"malformed"`
	Entries   int `json:"entries"` // after the run, learned entries included
}

// Result is everything a run produced; sinks read it and never mutate it
type Result struct {
	Run         Run
	Talks       []Resolved
	Diagnostics []resolve.Diagnostic
	Conflicts   []instdb.Conflict
	Stats       aggregate.Table
	Outliers    audit.Report
	// Patterns is keyed by audit.PatternsAll and by every country outlier
	Patterns map[string][]aggregate.Share
}
