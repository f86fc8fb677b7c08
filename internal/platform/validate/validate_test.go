package validate

import (
	"testing"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/testkit"
)

type edition struct {
	Year int    `yaml:"year" validate:"required,gte=1900,lte=2200"`
	ID   string `yaml:"indico_id" validate:"required,indico_id"`
	Name string `json:"name" validate:"omitempty,max=8"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        edition
		wantField string
		wantMsg   string
	}{
		{"ok", edition{Year: 2019, ID: "792436"}, "", ""},
		{"slug ok", edition{Year: 2012, ID: "qm_2012"}, "", ""},
		{"missing year", edition{ID: "1"}, "year", "required"},
		{"year floor", edition{Year: 1800, ID: "1"}, "year", "at least 1900"},
		{"bad id", edition{Year: 2019, ID: "../etc"}, "indico_id", "event id"},
		{"json tag name", edition{Year: 2019, ID: "1", Name: "too long a name"}, "name", "at most 8"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("Struct: %v", err)
				}
				return
			}
			if !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("code = %v, err %v", perr.CodeOf(err), err)
			}
			e, _ := perr.As(err)
			if e.Field() != tc.wantField {
				t.Fatalf("field = %q, want %q", e.Field(), tc.wantField)
			}
			testkit.MustContain(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	t.Parallel()
	if err := Struct(42); !perr.IsCode(err, perr.ErrorCodeUnknown) {
		t.Fatalf("want internal error, got %v", err)
	}
}

func TestFieldAndMessage(t *testing.T) {
	t.Parallel()
	if f, m := FieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil = %q %q", f, m)
	}
	err := Get().Validator.Struct(edition{})
	f, m := FieldAndMessage(err)
	if f != "year" {
		t.Fatalf("field = %q", f)
	}
	testkit.MustContain(t, m, "year")
}
