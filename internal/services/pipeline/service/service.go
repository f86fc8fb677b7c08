// Package service provides the pipeline service implementation
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/audit"
	"qmtrends/internal/core/instdb"
	"qmtrends/internal/core/resolve"
	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/core/version"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/services/pipeline/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration options for the pipeline service
type Config struct {
	// Workers bounds concurrent conference fetches; <=0 -> 4
	Workers int

	// Threshold is the outlier gap in percentage points; <=0 -> audit.DefaultThreshold
	Threshold float64

	// InstDBPath is the reference institute table, optional
	InstDBPath string

	// SaveInstDB writes learned entries back to InstDBPath after a run
	SaveInstDB bool
}

// Service implements the pipeline service
type Service struct {
	Source domain.TalkSource
	Pack   *rulepack.Pack
	Sinks  []domain.Sink
	Cfg    Config

	now   func() time.Time
	newID func() string
}

var _ domain.RunnerPort = (*Service)(nil)

// New constructs the pipeline service
func New(src domain.TalkSource, pack *rulepack.Pack, cfg Config, sinks ...domain.Sink) *Service {
	if src == nil {
		panic("pipeline.Service requires a non nil TalkSource")
	}
	if pack == nil {
		panic("pipeline.Service requires a rule pack")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = audit.DefaultThreshold
	}
	return &Service{
		Source: src,
		Pack:   pack,
		Sinks:  sinks,
		Cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run fetches every conference, resolves the talks in two passes, aggregates and writes the sinks.
// A conference whose fetch fails contributes no talks; only cancellation, instdb and sink errors fail the run
func (s *Service) Run(ctx context.Context, confs []talk.Conference) (domain.Result, error) {
	if len(confs) == 0 {
		return domain.Result{}, perr.InvalidArgf("pipeline: no conferences configured")
	}

	run := domain.Run{
		ID:        s.newID(),
		StartedAt: s.now().UTC(),
		Build:     version.Info(s.Pack.Version),
	}
	ctx = logger.WithRun(ctx, run.ID)
	log := logger.C(ctx)
	log.Info().Int("conferences", len(confs)).Int("workers", s.Cfg.Workers).Msg("pipeline: run started")

	recs, fetches, err := s.fetchAll(ctx, confs)
	if err != nil {
		return domain.Result{}, err
	}
	run.Fetches = fetches

	r, sum, err := s.NewResolver(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	talks := r.ResolveAll(recs)

	years := make([]int, 0, len(confs))
	for _, c := range confs {
		years = append(years, c.Year)
	}
	table := aggregate.Aggregate(talks, aggregate.Years(years...))

	res := domain.Result{
		Talks:       talks,
		Diagnostics: r.Diagnostics(),
		Conflicts:   r.DB().Conflicts(),
		Stats:       table,
		Outliers:    audit.Outliers(table, s.Cfg.Threshold),
	}
	res.Patterns = audit.PatternReport(talks, res.Outliers)

	if s.Cfg.SaveInstDB && s.Cfg.InstDBPath != "" {
		if err := r.DB().SaveFile(s.Cfg.InstDBPath); err != nil {
			return domain.Result{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "pipeline: save instdb %s", s.Cfg.InstDBPath)
		}
		log.Info().Str("path", s.Cfg.InstDBPath).Int("entries", r.DB().Len()).Msg("pipeline: instdb saved")
	}

	sum.Entries = r.DB().Len()
	run.InstDB = sum
	run.Talks = len(talks)
	for _, rt := range talks {
		if !rt.Affiliation.Resolved() {
			run.Unknown++
		}
	}
	run.Diagnostics = len(res.Diagnostics)
	run.Conflicts = len(res.Conflicts)
	run.FinishedAt = s.now().UTC()
	res.Run = run

	for _, o := range res.Outliers.Outliers {
		log.Warn().Str("kind", o.Kind).Str("label", o.Label).Float64("share", o.HeuristicShare).
			Float64("delta", o.Delta).Msg("pipeline: heuristic share outlier")
	}

	if err := s.write(ctx, res); err != nil {
		return res, err
	}

	log.Info().Int("talks", run.Talks).Int("unknown", run.Unknown).Int("diagnostics", run.Diagnostics).
		Int("conflicts", run.Conflicts).Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).Msg("pipeline: run finished")
	return res, nil
}

// fetchAll runs the fetches under a bounded errgroup and concatenates them in configured order
func (s *Service) fetchAll(ctx context.Context, confs []talk.Conference) ([]talk.Record, []domain.Fetch, error) {
	per := make([][]talk.Record, len(confs))
	fetches := make([]domain.Fetch, len(confs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Cfg.Workers)
	for i, c := range confs {
		g.Go(func() error {
			fctx := logger.WithConference(gctx, c.Label())
			start := s.now()
			recs, err := s.Source.FetchTalks(fctx, c)
			fetches[i] = domain.Fetch{Conference: c, ElapsedMS: s.now().Sub(start).Milliseconds()}
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				fetches[i].Error = err.Error()
				logger.C(fctx).Error().Err(err).Str("indico_id", c.IndicoID).
					Msg("pipeline: fetch failed, conference contributes no talks")
				return nil
			}
			per[i] = recs
			fetches[i].Talks = len(recs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	n := 0
	for _, recs := range per {
		n += len(recs)
	}
	out := make([]talk.Record, 0, n)
	for _, recs := range per {
		out = append(out, recs...)
	}
	return out, fetches, nil
}

// write hands the result to every sink and joins their failures
func (s *Service) write(ctx context.Context, res domain.Result) error {
	log := logger.C(ctx)
	var errs []error
	for _, sk := range s.Sinks {
		start := s.now()
		if err := sk.Write(ctx, res); err != nil {
			log.Error().Err(err).Str("sink", sk.Name()).Msg("pipeline: sink failed")
			errs = append(errs, perr.WithOp(err, "sink."+sk.Name()))
			continue
		}
		log.Debug().Str("sink", sk.Name()).Dur("elapsed", s.now().Sub(start)).Msg("pipeline: sink written")
	}
	return errors.Join(errs...)
}

// NewResolver builds a resolver over a table seeded from the rule pack and then the reference file.
// Seed entries win over file rows that disagree; the disagreement is kept as a conflict
func (s *Service) NewResolver(ctx context.Context) (*resolve.Resolver, domain.InstDBSummary, error) {
	log := logger.C(ctx)
	var sum domain.InstDBSummary

	db := instdb.New(s.Pack)
	for _, in := range s.Pack.Institutes {
		added, _, err := db.Register(in.Name, in.Country, in.Name)
		if err != nil {
			return nil, sum, perr.Wrapf(err, perr.ErrorCodeMalformed, "pipeline: seed institute %q", in.Name)
		}
		if added {
			sum.Seeded++
		}
	}

	if s.Cfg.InstDBPath != "" {
		rep, err := db.LoadFile(s.Cfg.InstDBPath)
		if err != nil {
			return nil, sum, err
		}
		logReport(log, s.Cfg.InstDBPath, rep)
		sum.Loaded = rep.Added
		sum.Malformed = len(rep.Malformed)
	}
	sum.Entries = db.Len()

	rl := log.With().Str("component", "resolve").Logger()
	return resolve.New(s.Pack, db, resolve.WithLogger(&rl)), sum, nil
}

// ResolveOne resolves a single raw affiliation against the configured tables
func (s *Service) ResolveOne(ctx context.Context, raw string) (talk.Affiliation, error) {
	if strings.TrimSpace(raw) == "" {
		return talk.Affiliation{}, perr.InvalidArgf("affiliation is empty")
	}
	r, _, err := s.NewResolver(ctx)
	if err != nil {
		return talk.Affiliation{}, err
	}
	return r.Resolve(talk.Record{RawAffiliation: raw, PresentationType: talk.UnknownType}), nil
}

func logReport(log *logger.Logger, path string, rep instdb.LoadReport) {
	for _, m := range rep.Malformed {
		log.Warn().Err(m.Err).Str("path", path).Int("line", m.Line).Strs("row", m.Raw).Msg("instdb: malformed row skipped")
	}
	for _, c := range rep.Conflicts {
		log.Warn().Err(c.Err()).Str("path", path).Msg("instdb: conflicting row skipped")
	}
	log.Info().Str("path", path).Int("rows", rep.Rows).Int("added", rep.Added).
		Int("malformed", len(rep.Malformed)).Int("conflicts", len(rep.Conflicts)).Msg("instdb: loaded")
}
