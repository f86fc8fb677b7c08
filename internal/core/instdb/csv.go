package instdb

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"qmtrends/internal/core/normalize"
	perr "qmtrends/internal/platform/errors"
)

// MalformedRow is a reference row that was skipped during Load
type MalformedRow struct {
	Line int
	Raw  []string
	Err  error
}

// LoadReport summarizes one Load call
type LoadReport struct {
	Rows      int // data rows read, header excluded
	Added     int
	Malformed []MalformedRow
	Conflicts []Conflict
}

// Load reads "Institute,Country" rows into d.
// The header row is optional. Bad rows are skipped and reported; only reader failures are returned
func (d *DB) Load(r io.Reader) (LoadReport, error) {
	var rep LoadReport

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // field count is checked per row so one bad row cannot abort the file
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rep.Malformed = append(rep.Malformed, MalformedRow{Line: pe.Line, Err: perr.Wrap(err, perr.ErrorCodeMalformed, "instdb: parse")})
				continue
			}
			return rep, perr.Wrap(err, perr.ErrorCodeUnknown, "instdb: read")
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		rep.Rows++

		if len(rec) != 2 {
			rep.Malformed = append(rep.Malformed, MalformedRow{Line: line, Raw: rec, Err: perr.Malformedf("instdb: want 2 fields, got %d", len(rec))})
			continue
		}
		name, country := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if normalize.Key(name) == "" || country == "" {
			rep.Malformed = append(rep.Malformed, MalformedRow{Line: line, Raw: rec, Err: perr.Malformedf("instdb: empty field")})
			continue
		}
		if _, ok := d.vocab.Canonical(country); !ok {
			rep.Malformed = append(rep.Malformed, MalformedRow{Line: line, Raw: rec, Err: perr.WithField(perr.Malformedf("instdb: country %q not in vocabulary", country), "country")})
			continue
		}

		added, cf, err := d.Register(name, country, name)
		if err != nil {
			rep.Malformed = append(rep.Malformed, MalformedRow{Line: line, Raw: rec, Err: err})
			continue
		}
		if cf != nil {
			rep.Conflicts = append(rep.Conflicts, *cf)
		}
		if added {
			rep.Added++
		}
	}
	return rep, nil
}

// LoadFile opens path and calls Load; a missing file is an empty table
func (d *DB) LoadFile(path string) (LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadReport{}, nil
		}
		return LoadReport{}, perr.Wrapf(err, perr.ErrorCodeNotFound, "instdb: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return d.Load(f)
}

// Save writes the table sorted by key with a header row
// the first alias is the display name, falling back to the key
func (d *DB) Save(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Institute", "Country"}); err != nil {
		return err
	}
	for _, e := range d.Entries() {
		name := e.Key
		if len(e.Aliases) > 0 {
			name = e.Aliases[0]
		}
		if err := cw.Write([]string{name, e.Country}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveFile writes the table to path through a temp file and rename
func (d *DB) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := d.Save(f); err != nil {
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

func isHeader(rec []string) bool {
	return len(rec) >= 2 &&
		strings.EqualFold(strings.TrimSpace(rec[0]), "institute") &&
		strings.EqualFold(strings.TrimSpace(rec[1]), "country")
}
