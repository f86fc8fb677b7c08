package domain

import (
	"context"

	"qmtrends/internal/core/talk"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context, confs []talk.Conference) (Result, error)
}

// TalkSource returns the materialized talk list of one conference
type TalkSource interface {
	FetchTalks(ctx context.Context, conf talk.Conference) ([]talk.Record, error)
}

// Sink persists the outcome of a run
type Sink interface {
	Name() string
	Write(ctx context.Context, res Result) error
}

// RunsRepo is the postgres storage used by the sql sink
type RunsRepo interface {
	// InsertRun records one run header
	InsertRun(ctx context.Context, run Run) error

	// InsertResolved writes the resolved talks of runID, returns rows written
	InsertResolved(ctx context.Context, runID string, talks []Resolved) (int, error)

	// RecentRuns returns up to limit run headers, newest first
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// HistoryPort lists past runs; only wired when postgres is configured
type HistoryPort interface {
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}
