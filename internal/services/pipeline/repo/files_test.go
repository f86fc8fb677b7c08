package repo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/audit"
	perr "qmtrends/internal/platform/errors"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return recs
}

func TestFiles_WritesEveryTable(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	res := sampleResult()
	sink := NewFiles(dir)
	if err := sink.Write(context.Background(), res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	resolved := readCSV(t, filepath.Join(dir, FileResolved))
	if len(resolved) != 1+len(res.Talks) {
		t.Fatalf("resolved rows = %d", len(resolved))
	}
	if resolved[0][0] != "run_id" || resolved[0][10] != "country" {
		t.Fatalf("header = %v", resolved[0])
	}
	row := resolved[2]
	if row[5] != `Flow, "v2"` || row[10] != "Germany" || row[11] != "CrossReferenced" || row[13] != "2017" {
		t.Fatalf("cross-referenced row = %v", row)
	}
	if resolved[1][13] != "" {
		t.Fatalf("direct row source year = %q", resolved[1][13])
	}

	if d := readCSV(t, filepath.Join(dir, FileDiagnostics)); len(d) != 2 || d[1][4] != "STAR Collaboration" {
		t.Fatalf("diagnostics = %v", d)
	}
	if c := readCSV(t, filepath.Join(dir, FileConflicts)); len(c) != 2 || c[1][2] != "Germany" {
		t.Fatalf("conflicts = %v", c)
	}

	b, err := os.ReadFile(filepath.Join(dir, FileStats))
	if err != nil {
		t.Fatal(err)
	}
	var table aggregate.Table
	if err := json.Unmarshal(b, &table); err != nil {
		t.Fatalf("stats json: %v", err)
	}
	if table.Total != 3 || len(table.Years) != 3 {
		t.Fatalf("stats = %+v", table)
	}

	b, err = os.ReadFile(filepath.Join(dir, FilePatterns))
	if err != nil {
		t.Fatal(err)
	}
	var patterns map[string][]aggregate.Share
	if err := json.Unmarshal(b, &patterns); err != nil {
		t.Fatalf("patterns json: %v", err)
	}
	if len(patterns[audit.PatternsAll]) != len(audit.PatternNames) {
		t.Fatalf("patterns = %+v", patterns)
	}

	for _, name := range []string{FileRun, FileOutliers} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if parts, _ := filepath.Glob(filepath.Join(dir, "*.part")); len(parts) != 0 {
		t.Fatalf("leftover temp files %v", parts)
	}
}

func TestFiles_Errors(t *testing.T) {
	t.Parallel()

	if err := NewFiles("").Write(context.Background(), sampleResult()); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFiles(t.TempDir()).Write(ctx, sampleResult()); err != context.Canceled {
		t.Fatalf("cancelled: %v", err)
	}
}
