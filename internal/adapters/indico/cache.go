package indico

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"qmtrends/internal/core/talk"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
)

// TalkSource yields the talks of one conference
type TalkSource interface {
	FetchTalks(ctx context.Context, conf talk.Conference) ([]talk.Record, error)
}

// cacheFormat is bumped when the on-disk record layout changes; older files count as misses
const cacheFormat = 1

// CachedSource serves talks from disk and falls back to an upstream source
// Local dir holds one {year}-{id}.json per conference plus a .meta sidecar
type CachedSource struct {
	dir      string
	upstream TalkSource
	maxAge   time.Duration
	offline  bool
	refresh  bool
	now      func() time.Time
	log      logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
	stale  atomic.Int64
}

// cacheMeta is a small sidecar json with fields we actually use
type cacheMeta struct {
	Format    int       `json:"format"`
	Year      int       `json:"year"`
	IndicoID  string    `json:"indico_id"`
	Talks     int       `json:"talks"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheStats counts how conferences were served
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Stale  int64 `json:"stale"`
}

// CacheOption configures the cached source
type CacheOption func(*CachedSource)

// WithMaxAge refetches entries older than d; zero keeps entries forever
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *CachedSource) { c.maxAge = d }
}

// WithOffline never calls upstream; a miss is a NotFound error
func WithOffline(on bool) CacheOption {
	return func(c *CachedSource) { c.offline = on }
}

// WithRefresh ignores fresh entries and always asks upstream first
func WithRefresh(on bool) CacheOption {
	return func(c *CachedSource) { c.refresh = on }
}

// NewCachedSource wraps upstream with an on-disk cache in dir
func NewCachedSource(dir string, upstream TalkSource, opts ...CacheOption) *CachedSource {
	c := &CachedSource{
		dir:      dir,
		upstream: upstream,
		now:      time.Now,
		log:      *logger.Named("talkcache"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stats returns hit and miss counters since construction
func (c *CachedSource) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Stale: c.stale.Load()}
}

// FetchTalks serves conf from disk when fresh, otherwise from upstream
// an upstream failure with a stale entry on disk returns the stale talks
func (c *CachedSource) FetchTalks(ctx context.Context, conf talk.Conference) ([]talk.Record, error) {
	path := c.path(conf)
	meta, talks, cached := c.load(path, conf)

	if cached && (c.offline || (!c.refresh && c.fresh(meta))) {
		c.hits.Add(1)
		return talks, nil
	}
	if c.offline {
		return nil, perr.NotFoundf("conference %d (%s) is not cached", conf.Year, conf.IndicoID)
	}

	fetched, err := c.upstream.FetchTalks(ctx, conf)
	if err != nil {
		if cached {
			c.stale.Add(1)
			c.log.Warn().Err(err).Int("year", conf.Year).Str("event", conf.IndicoID).
				Time("fetched_at", meta.FetchedAt).Msg("upstream failed, serving stale cache")
			return talks, nil
		}
		return nil, err
	}
	c.misses.Add(1)

	if err := c.store(path, conf, fetched); err != nil {
		// the run can proceed; the next one refetches
		c.log.Warn().Err(err).Str("path", path).Msg("talk cache write failed")
	}
	return fetched, nil
}

func (c *CachedSource) path(conf talk.Conference) string {
	return filepath.Join(c.dir, strconv.Itoa(conf.Year)+"-"+conf.IndicoID+".json")
}

func (c *CachedSource) fresh(m cacheMeta) bool {
	return c.maxAge <= 0 || c.now().Sub(m.FetchedAt) <= c.maxAge
}

// load returns the cached talks; unreadable or foreign entries count as absent
func (c *CachedSource) load(path string, conf talk.Conference) (cacheMeta, []talk.Record, bool) {
	meta, err := loadMeta(path + ".meta")
	if err != nil {
		return cacheMeta{}, nil, false
	}
	if meta.Format != cacheFormat || meta.Year != conf.Year || meta.IndicoID != conf.IndicoID {
		return cacheMeta{}, nil, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cacheMeta{}, nil, false
	}
	var talks []talk.Record
	if err := json.Unmarshal(b, &talks); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("corrupt talk cache entry ignored")
		return cacheMeta{}, nil, false
	}
	return meta, talks, true
}

// store writes the talks then the sidecar, each atomically
func (c *CachedSource) store(path string, conf talk.Conference, talks []talk.Record) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	if talks == nil {
		talks = []talk.Record{}
	}
	b, err := json.MarshalIndent(talks, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(path, b); err != nil {
		return err
	}
	return saveMeta(path+".meta", cacheMeta{
		Format:    cacheFormat,
		Year:      conf.Year,
		IndicoID:  conf.IndicoID,
		Talks:     len(talks),
		FetchedAt: c.now().UTC(),
	})
}

func loadMeta(path string) (cacheMeta, error) {
	var m cacheMeta
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func saveMeta(path string, m cacheMeta) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return writeAtomic(path, b)
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
