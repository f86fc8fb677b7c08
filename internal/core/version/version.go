// Package version provides information about the build and the resolver rules it carries.
package version

// BuildInfo holds version information about the binary and its rule set.
type BuildInfo struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Rules    int    `json:"rules"`
	Resolver int    `json:"resolver"`
}

// Resolver is bumped whenever extraction or cross-reference semantics change
const Resolver = 2

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
// rules is the loaded rule pack version, 0 when unknown
func Info(rules int) BuildInfo {
	// Set via -ldflags "-X 'qmtrends/internal/core/version.version=v0.1.0'
	// -X 'qmtrends/internal/core/version.commit=abcd' -X 'qmtrends/internal/core/version.date=2026-10-01'"
	return BuildInfo{
		Service:  "qmtrends",
		Version:  version,
		Commit:   commit,
		Date:     date,
		Rules:    rules,
		Resolver: Resolver,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
