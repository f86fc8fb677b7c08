package repo

import (
	"context"
	"time"

	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/audit"
	"qmtrends/internal/core/instdb"
	"qmtrends/internal/core/resolve"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/core/version"
	"qmtrends/internal/platform/store"
	"qmtrends/internal/services/pipeline/domain"
)

func sampleResult() domain.Result {
	talks := []talk.Resolved{
		{
			Record: talk.Record{Year: 2017, ConferenceID: "QM2017", PresentationType: talk.Plenary, Title: "Jets", SpeakerName: "Doe, Jane", RawAffiliation: "GSI, Darmstadt, Germany"},
			Affiliation: talk.Affiliation{Raw: "GSI, Darmstadt, Germany", Key: "gsi darmstadt germany", Institute: "GSI", Country: "Germany", Confidence: talk.Exact, Rule: "exact.alias"},
		},
		{
			Record:      talk.Record{Year: 2018, ConferenceID: "QM2018", PresentationType: talk.Poster, Title: "Flow, \"v2\"", SpeakerName: "Jane Doe"},
			Affiliation: talk.Affiliation{Institute: "GSI", Country: "Germany", Confidence: talk.CrossReferenced, SourceYear: 2017, Rule: resolve.RuleCrossRef},
		},
		{
			Record:      talk.Record{Year: 2018, ConferenceID: "QM2018", PresentationType: talk.Parallel, Title: "Charm", SpeakerName: "Ann Smith", RawAffiliation: "STAR Collaboration"},
			Affiliation: talk.UnknownAffiliation("STAR Collaboration", "star collaboration", nil),
		},
	}
	table := aggregate.Aggregate(talks, aggregate.Years(2017, 2018, 2019))
	res := domain.Result{
		Run: domain.Run{
			ID:         "6f1c1f7e-8d3c-4b8e-9a53-6d1f2b7c9e01",
			StartedAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 10, 1, 12, 0, 5, 0, time.UTC),
			Build:      version.Info(3),
			Fetches:    []domain.Fetch{{Conference: talk.Conference{Year: 2017, IndicoID: "1"}, Talks: 1}},
			Talks:      len(talks),
			Unknown:    1,
		},
		Talks: talks,
		Diagnostics: []resolve.Diagnostic{
			{Year: 2018, Conference: "QM2018", Title: "Charm", Speaker: "Ann Smith", Raw: "STAR Collaboration", Country: talk.Unknown, Confidence: talk.None},
		},
		Conflicts: []instdb.Conflict{{Key: "nikhef", Existing: "Netherlands", Proposed: "Germany", Alias: "Nikhef"}},
		Stats:     table,
		Outliers:  audit.Outliers(table, 0),
	}
	res.Patterns = audit.PatternReport(talks, res.Outliers)
	return res
}

// cmdTag satisfies store.CommandTag
type cmdTag int64

func (c cmdTag) String() string      { return "INSERT" }
func (c cmdTag) RowsAffected() int64 { return int64(c) }

// fakeQ records statements; affected decides RowsAffected per call
type fakeQ struct {
	sqls     []string
	args     [][]any
	errs     []error // popped per Exec
	affected func(sql string, args []any) int64
	rows     store.Rows
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	n := int64(1)
	if f.affected != nil {
		n = f.affected(sql, args)
	}
	return cmdTag(n), nil
}
func (f *fakeQ) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return f.rows, nil
}
func (f *fakeQ) QueryRow(context.Context, string, ...any) store.Row      { return nil }

// fakeTx runs fn against q and counts transactions
type fakeTx struct {
	*fakeQ
	txs int
}

func (f *fakeTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	f.txs++
	return fn(f.fakeQ)
}
