package repo

import (
	"context"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/store"
	"qmtrends/internal/services/pipeline/domain"
)

// TableYearCountry is the clickhouse table of per-year country shares
const TableYearCountry = "year_country_stats"

// yearCountryDDL is applied by EnsureSchema; the column order matches yearCountryRows
const yearCountryDDL = `
CREATE TABLE IF NOT EXISTS year_country_stats (
    run_id            String,
    finished_at       DateTime,
    year              UInt16,
    country           LowCardinality(String),
    talks             UInt32,
    percent           Float64,
    year_total        UInt32,
    hhi               Float64,
    hhi_known         Float64,
    unique_countries  UInt16
) ENGINE = MergeTree
ORDER BY (year, country, run_id)`

// Columnar writes per-year country shares to clickhouse for dashboards
type Columnar struct {
	ch store.Clickhouse
}

var _ domain.Sink = (*Columnar)(nil)

// NewColumnar wraps a clickhouse seam
func NewColumnar(ch store.Clickhouse) *Columnar {
	if ch == nil {
		panic("repo.Columnar requires a clickhouse seam")
	}
	return &Columnar{ch: ch}
}

// Name implements domain.Sink
func (c *Columnar) Name() string { return "ch" }

// EnsureSchema creates the stats table when missing
func (c *Columnar) EnsureSchema(ctx context.Context) error {
	if err := c.ch.Exec(ctx, yearCountryDDL); err != nil {
		return perr.WithOp(err, "create "+TableYearCountry)
	}
	return nil
}

// Write implements domain.Sink; one row per year and country, empty years write nothing
func (c *Columnar) Write(ctx context.Context, res domain.Result) error {
	rows := yearCountryRows(res)
	if len(rows) == 0 {
		return nil
	}
	if err := c.ch.Insert(ctx, TableYearCountry, rows); err != nil {
		return perr.WithOp(err, "insert "+TableYearCountry)
	}
	return nil
}

func yearCountryRows(res domain.Result) [][]any {
	var rows [][]any
	for _, ys := range res.Stats.Years {
		for _, sh := range ys.Countries {
			rows = append(rows, []any{
				res.Run.ID,
				res.Run.FinishedAt,
				uint16(ys.Year),
				sh.Label,
				uint32(sh.Count),
				sh.Percent,
				uint32(ys.Total),
				ys.HHI,
				ys.HHIKnown,
				uint16(ys.UniqueCountries),
			})
		}
	}
	return rows
}
