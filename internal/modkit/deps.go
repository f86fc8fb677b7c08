// Package modkit provides module wiring and core deps
package modkit

import (
	"qmtrends/internal/modkit/repokit"
	"qmtrends/internal/platform/config"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// PG and CH are nil when the backend is disabled
	PG repokit.TxRunner
	CH store.Clickhouse
}

// HasPG reports whether a postgres seam is wired
func (d Deps) HasPG() bool { return d.PG != nil }

// HasCH reports whether a clickhouse seam is wired
func (d Deps) HasCH() bool { return d.CH != nil }
