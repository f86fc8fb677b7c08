package modkit

import (
	"testing"

	"qmtrends/internal/platform/config"
	"qmtrends/internal/platform/store"
)

func TestDeps_ZeroValueHasNoBackends(t *testing.T) {
	t.Parallel()
	var d Deps
	if d.HasPG() || d.HasCH() {
		t.Fatalf("zero Deps reports backends: pg=%v ch=%v", d.HasPG(), d.HasCH())
	}
}

type nopCH struct{ store.Clickhouse }

func TestDeps_HasCH(t *testing.T) {
	t.Parallel()
	d := Deps{Cfg: config.New(), CH: nopCH{}}
	if !d.HasCH() || d.HasPG() {
		t.Fatalf("HasCH=%v HasPG=%v", d.HasCH(), d.HasPG())
	}
}
