// Package repo provides the sinks a pipeline run writes to
package repo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/services/pipeline/domain"
)

// Output file names inside the files sink directory
const (
	FileRun         = "run.json"
	FileStats       = "stats.json"
	FileOutliers    = "outliers.json"
	FilePatterns    = "patterns.json"
	FileResolved    = "resolved_talks.csv"
	FileDiagnostics = "diagnostics.csv"
	FileConflicts   = "conflicts.csv"
)

// Files writes JSON and CSV tables under one directory for external renderers
type Files struct {
	dir string
}

var _ domain.Sink = (*Files)(nil)

// NewFiles returns a sink that writes into dir, creating it on first write
func NewFiles(dir string) *Files { return &Files{dir: dir} }

// Name implements domain.Sink
func (f *Files) Name() string { return "files" }

// Dir is the output directory
func (f *Files) Dir() string { return f.dir }

// Write implements domain.Sink; each file is replaced atomically
func (f *Files) Write(ctx context.Context, res domain.Result) error {
	if f.dir == "" {
		return perr.InvalidArgf("files sink: output dir is empty")
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "files sink: mkdir %s", f.dir)
	}

	steps := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FileRun, jsonOf(res.Run)},
		{FileStats, jsonOf(res.Stats)},
		{FileOutliers, jsonOf(res.Outliers)},
		{FilePatterns, jsonOf(res.Patterns)},
		{FileResolved, func(w io.Writer) error { return writeResolved(w, res) }},
		{FileDiagnostics, func(w io.Writer) error { return writeDiagnostics(w, res) }},
		{FileConflicts, func(w io.Writer) error { return writeConflicts(w, res) }},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := atomicWrite(filepath.Join(f.dir, st.name), st.write); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "files sink: write %s", st.name)
		}
	}
	return nil
}

func jsonOf(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func writeResolved(w io.Writer, res domain.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"run_id", "year", "conference_id", "presentation_type", "session", "title", "speaker",
		"raw_affiliation", "normalized_key", "institute", "country", "confidence", "rule", "source_year",
	})
	for _, rt := range res.Talks {
		a := rt.Affiliation
		src := ""
		if a.SourceYear != 0 {
			src = strconv.Itoa(a.SourceYear)
		}
		_ = cw.Write([]string{
			res.Run.ID, strconv.Itoa(rt.Year), rt.ConferenceID, string(rt.PresentationType), rt.SessionLabel,
			rt.Title, rt.SpeakerName, a.Raw, a.Key, a.Institute, a.Country, string(a.Confidence), a.Rule, src,
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeDiagnostics(w io.Writer, res domain.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"year", "conference", "title", "speaker", "raw_affiliation", "country", "confidence", "rule"})
	for _, d := range res.Diagnostics {
		_ = cw.Write([]string{
			strconv.Itoa(d.Year), d.Conference, d.Title, d.Speaker, d.Raw, d.Country, string(d.Confidence), d.Rule,
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeConflicts(w io.Writer, res domain.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"key", "existing", "proposed", "alias"})
	for _, c := range res.Conflicts {
		_ = cw.Write([]string{c.Key, c.Existing, c.Proposed, c.Alias})
	}
	cw.Flush()
	return cw.Error()
}

// atomicWrite writes through path.part and renames over path
func atomicWrite(path string, fn func(io.Writer) error) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
