package module

import (
	"time"

	"qmtrends/internal/adapters/indico"
	"qmtrends/internal/core/audit"
	"qmtrends/internal/platform/config"
)

// Options holds configuration settings for the pipeline module
type Options struct {
	Workers          int
	OutDir           string
	Threshold        float64
	InstDBPath       string
	SaveInstDB       bool
	ConferencesFile  string
	StatementTimeout time.Duration

	Indico IndicoOptions
}

// IndicoOptions configures the event source and its disk cache
type IndicoOptions struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	Retries       int
	RetryBase     time.Duration
	TitleKeywords []string

	CacheDir    string
	CacheMaxAge time.Duration
	Offline     bool
	Refresh     bool
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	pf := cfg.Prefix("QMT_PIPELINE_")
	ix := cfg.Prefix("QMT_INDICO_")
	return Options{
		Workers:          pf.MayInt("WORKERS", 4),
		OutDir:           pf.MayPath("OUT_DIR", "out"),
		Threshold:        pf.MayFloat64("THRESHOLD", audit.DefaultThreshold),
		InstDBPath:       pf.MayPath("INSTDB", "data/institutes.csv"),
		SaveInstDB:       pf.MayBool("SAVE_INSTDB", false),
		ConferencesFile:  pf.MayPath("CONFERENCES", "conferences.yaml"),
		StatementTimeout: pf.MayDuration("STATEMENT_TIMEOUT", 30*time.Second),
		Indico: IndicoOptions{
			BaseURL:       ix.MayURL("BASE_URL", ""),
			Token:         ix.MayString("TOKEN", ""),
			Timeout:       ix.MayDuration("TIMEOUT", 60*time.Second),
			Retries:       ix.MayInt("RETRIES", 4),
			RetryBase:     ix.MayDuration("RETRY_BASE", 500*time.Millisecond),
			TitleKeywords: ix.MayCSV("TITLE_KEYWORDS", indico.DefaultTitleKeywords),
			CacheDir:      ix.MayPath("CACHE_DIR", "data/cache"),
			CacheMaxAge:   ix.MayDuration("CACHE_MAX_AGE", 0),
			Offline:       ix.MayBool("OFFLINE", false),
			Refresh:       ix.MayBool("REFRESH", false),
		},
	}
}
