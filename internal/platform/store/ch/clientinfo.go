package ch

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo tags clickhouse sessions so system.query_log shows which
// qmtrends command wrote a row. role is the command, e.g. "run" or "migrate"
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	products := []struct{ Name, Version string }{
		{"qmtrends", orUnknown(tag)},
		{"role", orUnknown(role)},
		{"go", runtime.Version()},
	}
	if rev := revision(); rev != "" {
		products = append(products, struct{ Name, Version string }{"commit", rev})
	}
	return clickhouse.ClientInfo{Products: products}
}

// revision is the short vcs revision stamped by the go toolchain, empty in tests
func revision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
