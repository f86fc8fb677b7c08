package repo

import (
	"context"
	"encoding/json"
	"time"

	"qmtrends/internal/modkit/repokit"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/store"
	"qmtrends/internal/services/pipeline/domain"
)

// insertChunk bounds the array parameters of one unnest insert
const insertChunk = 1000

type (
	// PG is a Postgres binder for domain.RunsRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.RunsRepo
func NewPG() repokit.Binder[domain.RunsRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.RunsRepo { return &queries{q: q} }

// InsertRun records one run header
func (r *queries) InsertRun(ctx context.Context, run domain.Run) error {
	fetches, err := json.Marshal(run.Fetches)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode fetches")
	}
	err = store.ExecOne(ctx, r.q, `
		INSERT INTO runs (
			run_id, started_at, finished_at, build_version, build_commit, rules_version, resolver,
			talks, unknown, diagnostics, conflicts, fetches
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
	`,
		run.ID, run.StartedAt, run.FinishedAt, run.Build.Version, run.Build.Commit, run.Build.Rules, run.Build.Resolver,
		run.Talks, run.Unknown, run.Diagnostics, run.Conflicts, string(fetches),
	)
	return perr.FromPostgres(err, "insert runs")
}

// InsertResolved writes talks in chunks of array parameters; ordinal keeps input order
func (r *queries) InsertResolved(ctx context.Context, runID string, talks []domain.Resolved) (int, error) {
	const insertSQL = `
		INSERT INTO resolved_talks (
			run_id, ordinal, year, conference_id, presentation_type, session_label, title, speaker,
			raw_affiliation, normalized_key, institute, country, confidence, rule, source_year
		)
		SELECT $1::uuid, t.*
		FROM unnest(
			$2::int4[], $3::int4[], $4::text[], $5::text[], $6::text[], $7::text[], $8::text[],
			$9::text[], $10::text[], $11::text[], $12::text[], $13::text[], $14::text[], $15::int4[]
		) AS t
	`
	written := 0
	for start := 0; start < len(talks); start += insertChunk {
		end := min(start+insertChunk, len(talks))
		c := columnsOf(talks[start:end], start)
		tag, err := r.q.Exec(ctx, insertSQL, runID,
			c.ordinal, c.year, c.conference, c.typ, c.session, c.title, c.speaker,
			c.raw, c.key, c.institute, c.country, c.confidence, c.rule, c.sourceYear,
		)
		if err != nil {
			return written, perr.FromPostgresf(err, "insert resolved_talks %d-%d", start, end)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// DefaultRecentRuns is the page size when RecentRuns gets a non-positive limit
const DefaultRecentRuns = 10

// RecentRuns reads run headers newest first; InstDB is not stored and stays zero
func (r *queries) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}
	runs, err := store.Many(ctx, r.q, scanRun, `
		SELECT run_id::text, started_at, finished_at, build_version, build_commit, rules_version, resolver,
			talks, unknown, diagnostics, conflicts, fetches
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeJSON) {
			return nil, err
		}
		return nil, perr.FromPostgres(err, "select runs")
	}
	return runs, nil
}

func scanRun(row store.Row) (domain.Run, error) {
	var (
		run     domain.Run
		fetches []byte
	)
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Build.Version, &run.Build.Commit,
		&run.Build.Rules, &run.Build.Resolver, &run.Talks, &run.Unknown, &run.Diagnostics, &run.Conflicts, &fetches)
	if err != nil {
		return run, err
	}
	if len(fetches) > 0 {
		if err := json.Unmarshal(fetches, &run.Fetches); err != nil {
			return run, perr.Wrapf(err, perr.ErrorCodeJSON, "decode fetches of run %s", run.ID)
		}
	}
	run.Build.Service = "qmtrends"
	return run, nil
}

// columns is the column-major form of a chunk
type columns struct {
	ordinal, year                            []int32
	conference, typ, session, title, speaker []string
	raw, key, institute, country             []string
	confidence, rule                         []string
	sourceYear                               []*int32
}

func columnsOf(talks []domain.Resolved, offset int) columns {
	n := len(talks)
	c := columns{
		ordinal: make([]int32, 0, n), year: make([]int32, 0, n),
		conference: make([]string, 0, n), typ: make([]string, 0, n), session: make([]string, 0, n),
		title: make([]string, 0, n), speaker: make([]string, 0, n),
		raw: make([]string, 0, n), key: make([]string, 0, n), institute: make([]string, 0, n),
		country: make([]string, 0, n), confidence: make([]string, 0, n), rule: make([]string, 0, n),
		sourceYear: make([]*int32, 0, n),
	}
	for i, rt := range talks {
		a := rt.Affiliation
		var src *int32
		if a.SourceYear != 0 {
			v := int32(a.SourceYear)
			src = &v
		}
		c.ordinal = append(c.ordinal, int32(offset+i))
		c.year = append(c.year, int32(rt.Year))
		c.conference = append(c.conference, rt.ConferenceID)
		c.typ = append(c.typ, string(rt.PresentationType))
		c.session = append(c.session, rt.SessionLabel)
		c.title = append(c.title, rt.Title)
		c.speaker = append(c.speaker, rt.SpeakerName)
		c.raw = append(c.raw, a.Raw)
		c.key = append(c.key, a.Key)
		c.institute = append(c.institute, a.Institute)
		c.country = append(c.country, a.Country)
		c.confidence = append(c.confidence, string(a.Confidence))
		c.rule = append(c.rule, a.Rule)
		c.sourceYear = append(c.sourceYear, src)
	}
	return c
}

// SQL writes runs and resolved_talks in one transaction
type SQL struct {
	db       repokit.TxRunner
	binder   repokit.Binder[domain.RunsRepo]
	attempts int
	backoff  time.Duration
	sleep    func(context.Context, time.Duration) error
}

var _ domain.Sink = (*SQL)(nil)

// NewSQL wraps db; hooks run at the start of every sink transaction
func NewSQL(db repokit.TxRunner, binder repokit.Binder[domain.RunsRepo], hooks ...repokit.BeginHook) *SQL {
	if db == nil {
		panic("repo.SQL requires a non nil TxRunner")
	}
	if binder == nil {
		binder = NewPG()
	}
	return &SQL{
		db:       repokit.WithBeginHooks(db, hooks...),
		binder:   binder,
		attempts: 3,
		backoff:  250 * time.Millisecond,
		sleep:    sleepCtx,
	}
}

// Name implements domain.Sink
func (s *SQL) Name() string { return "pg" }

var _ domain.HistoryPort = (*SQL)(nil)

// RecentRuns implements domain.HistoryPort outside a transaction
func (s *SQL) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	return repokit.MustBind(s.binder, s.db).RecentRuns(ctx, limit)
}

// Write implements domain.Sink; serialization failures and deadlocks retry the whole tx
func (s *SQL) Write(ctx context.Context, res domain.Result) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			if serr := s.sleep(ctx, s.backoff<<(attempt-1)); serr != nil {
				return serr
			}
		}
		err = repokit.InTx(ctx, s.db, s.binder, func(r domain.RunsRepo) error {
			if err := r.InsertRun(ctx, res.Run); err != nil {
				return err
			}
			n, err := r.InsertResolved(ctx, res.Run.ID, res.Talks)
			if err != nil {
				return err
			}
			if n != len(res.Talks) {
				return perr.DBf("resolved_talks: wrote %d of %d rows", n, len(res.Talks))
			}
			return nil
		})
		if err == nil || !perr.IsRetryable(err) {
			return err
		}
		logger.C(ctx).Warn().Err(err).Int("attempt", attempt+1).Msg("pg sink: retryable failure")
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
