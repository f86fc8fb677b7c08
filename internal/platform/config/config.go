// Package config reads qmtrends settings from environment variables
// unset keys take the caller's default; unusable values are logged and also take it
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"qmtrends/internal/platform/logger"
)

// Conf is a namespaced view over the environment, e.g. Prefix("QMT_INDICO_")
type Conf struct{ prefix string }

// New returns the root view
func New() Conf { return Conf{} }

// Prefix returns a child view with p appended
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

// value returns the trimmed setting and its full env name
func (c Conf) value(k string) (string, string) {
	name := c.key(k)
	return strings.TrimSpace(os.Getenv(name)), name
}

// parse applies fn to a set value; on error it warns and keeps def
func parse[T any](c Conf, key string, def T, fn func(string) (T, error)) T {
	v, name := c.value(key)
	if v == "" {
		return def
	}
	out, err := fn(v)
	if err != nil {
		logger.Named("config").Warn().Err(err).
			Str("key", name).Str("value", v).Interface("default", def).
			Msg("config: unusable value, keeping default")
		return def
	}
	return out
}

// MayString returns the trimmed value or def
func (c Conf) MayString(key, def string) string {
	if v, _ := c.value(key); v != "" {
		return v
	}
	return def
}

// MayInt returns an int setting or def
func (c Conf) MayInt(key string, def int) int {
	return parse(c, key, def, strconv.Atoi)
}

// MayFloat64 returns a float setting or def
func (c Conf) MayFloat64(key string, def float64) float64 {
	return parse(c, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// MayBool returns a bool setting or def; accepts what strconv.ParseBool accepts
func (c Conf) MayBool(key string, def bool) bool {
	return parse(c, key, def, strconv.ParseBool)
}

// MayDuration returns a non-negative duration setting or def
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return parse(c, key, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			err = fmt.Errorf("negative duration %s", d)
		}
		return d, err
	})
}

// MayURL returns an absolute URL without trailing slash, or def
func (c Conf) MayURL(key, def string) string {
	return parse(c, key, def, func(s string) (string, error) {
		u, err := url.Parse(s)
		if err != nil {
			return "", err
		}
		if !u.IsAbs() || u.Host == "" {
			return "", fmt.Errorf("%q is not an absolute url", s)
		}
		return strings.TrimRight(u.String(), "/"), nil
	})
}

// MayPath returns a cleaned path or def; a leading ~ is the home dir
func (c Conf) MayPath(key, def string) string {
	p := c.MayString(key, def)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return filepath.Clean(p)
}

// MayCSV splits a comma list, dropping blanks; def when nothing is left
func (c Conf) MayCSV(key string, def []string) []string {
	v, _ := c.value(key)
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
