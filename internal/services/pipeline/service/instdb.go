package service

import (
	"context"
	"errors"
	"os"

	"qmtrends/internal/core/instdb"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
)

// TableReport is the load outcome of one institute table
type TableReport struct {
	Path string
	instdb.LoadReport
}

// MergeReport summarizes a merge of several tables into one
type MergeReport struct {
	Inputs    []TableReport
	Conflicts []instdb.Conflict
	Entries   int
}

// CheckInstDB loads path into an empty table and reports malformed rows and conflicts
func (s *Service) CheckInstDB(ctx context.Context, path string) (TableReport, error) {
	if err := mustExist(path); err != nil {
		return TableReport{}, err
	}
	db := instdb.New(s.Pack)
	rep, err := db.LoadFile(path)
	if err != nil {
		return TableReport{}, err
	}
	logReport(logger.C(ctx), path, rep)
	return TableReport{Path: path, LoadReport: rep}, nil
}

// MergeInstDB loads inputs in order into one table, first mapping wins, and writes it to out
func (s *Service) MergeInstDB(ctx context.Context, out string, inputs ...string) (MergeReport, error) {
	if out == "" {
		return MergeReport{}, perr.InvalidArgf("instdb merge: output path is empty")
	}
	if len(inputs) == 0 {
		return MergeReport{}, perr.InvalidArgf("instdb merge: no input tables")
	}

	log := logger.C(ctx)
	db := instdb.New(s.Pack)
	var mr MergeReport
	for _, in := range inputs {
		if err := mustExist(in); err != nil {
			return MergeReport{}, err
		}
		rep, err := db.LoadFile(in)
		if err != nil {
			return MergeReport{}, err
		}
		logReport(log, in, rep)
		mr.Inputs = append(mr.Inputs, TableReport{Path: in, LoadReport: rep})
	}
	if err := db.SaveFile(out); err != nil {
		return MergeReport{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "instdb merge: write %s", out)
	}
	mr.Conflicts = db.Conflicts()
	mr.Entries = db.Len()
	log.Info().Str("out", out).Int("inputs", len(inputs)).Int("entries", mr.Entries).
		Int("conflicts", len(mr.Conflicts)).Msg("instdb: merged")
	return mr, nil
}

// LoadFile treats a missing table as empty, the tooling wants it loud
func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return perr.NotFoundf("instdb: %s does not exist", path)
		}
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "instdb: stat %s", path)
	}
	return nil
}
