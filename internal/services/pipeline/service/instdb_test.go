package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/testkit"
)

func TestCheckInstDB(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := testkit.WriteFile(t, dir, "a.csv", "Institute,Country\nNikhef,Netherlands\nNikhef,Germany\nNowhere Lab,Atlantis\n,France\n")
	s := newService(t, &fakeSource{}, Config{})

	rep, err := s.CheckInstDB(context.Background(), p)
	if err != nil {
		t.Fatalf("CheckInstDB: %v", err)
	}
	if rep.Rows != 4 || rep.Added != 1 || len(rep.Malformed) != 2 || len(rep.Conflicts) != 1 {
		t.Fatalf("report = %+v", rep.LoadReport)
	}

	_, err = s.CheckInstDB(context.Background(), filepath.Join(dir, "missing.csv"))
	testkit.MustCode(t, err, perr.ErrorCodeNotFound)
}

func TestMergeInstDB_FirstWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := testkit.WriteFile(t, dir, "a.csv", "Nikhef,Netherlands\nSUBATECH,France\n")
	b := testkit.WriteFile(t, dir, "b.csv", "Nikhef,Germany\nUniversity of Tsukuba,Japan\n")
	out := filepath.Join(dir, "merged", "institutes.csv")
	s := newService(t, &fakeSource{}, Config{})

	mr, err := s.MergeInstDB(context.Background(), out, a, b)
	if err != nil {
		t.Fatalf("MergeInstDB: %v", err)
	}
	if mr.Entries != 3 || len(mr.Conflicts) != 1 || len(mr.Inputs) != 2 {
		t.Fatalf("merge = %+v", mr)
	}
	if c := mr.Conflicts[0]; c.Existing != "Netherlands" || c.Proposed != "Germany" {
		t.Fatalf("conflict = %+v", c)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	testkit.MustContain(t, string(got), "Nikhef,Netherlands")
	testkit.MustContain(t, string(got), "University of Tsukuba,Japan")
}

func TestMergeInstDB_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := testkit.WriteFile(t, dir, "a.csv", "Nikhef,Netherlands\n")
	s := newService(t, &fakeSource{}, Config{})
	ctx := context.Background()

	tests := []struct {
		name   string
		out    string
		inputs []string
		code   perr.ErrorCode
	}{
		{"no output", "", []string{a}, perr.ErrorCodeInvalidArgument},
		{"no inputs", filepath.Join(dir, "o.csv"), nil, perr.ErrorCodeInvalidArgument},
		{"missing input", filepath.Join(dir, "o.csv"), []string{a, filepath.Join(dir, "nope.csv")}, perr.ErrorCodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.MergeInstDB(ctx, tc.out, tc.inputs...)
			testkit.MustCode(t, err, tc.code)
		})
	}
}
