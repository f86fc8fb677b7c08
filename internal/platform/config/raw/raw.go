// Package raw reads env during bootstrap, before the logger exists
// it must not import the logger or config packages
package raw

import (
	"os"
	"slices"
	"strconv"
	"strings"
)

// Conf is a namespaced view over environment variables, e.g. "QMT_LOG_"
type Conf struct{ prefix string }

// New returns a root Conf with no prefix
func New() Conf { return Conf{} }

// Prefix returns a child Conf with p appended to the prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) lookup(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// Get returns the trimmed value or def when empty
func (c Conf) Get(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1, true and yes in any case; anything else set is false
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.lookup(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

// GetInt parses a non-negative integer; bad or negative values fall back to def
func (c Conf) GetInt(key string, def int) int {
	n, err := strconv.Atoi(c.lookup(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// GetEnum returns the lowercased value when it is one of allowed, else def
// bootstrap has no logger to complain through, so unknown values degrade quietly
func (c Conf) GetEnum(key, def string, allowed ...string) string {
	v := strings.ToLower(c.lookup(key))
	if slices.Contains(allowed, v) {
		return v
	}
	return def
}
