package module

import (
	"testing"

	"qmtrends/internal/platform/testkit"
)

type runner interface{ Run() int }

type runImpl struct{ v int }

func (r runImpl) Run() int { return r.v }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string   { return m.name }
func (m fakeModule) Ports() PortSet { return m.ports }

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type bundle struct {
		Runner runner
		Count  int
	}
	type hidden struct {
		runner runner
	}

	tests := []struct {
		name   string
		ports  any
		want   int
		wantOK bool
	}{
		{"nil ports", nil, 0, false},
		{"direct", runner(runImpl{v: 42}), 42, true},
		{"exported field", bundle{Runner: runImpl{v: 7}, Count: 1}, 7, true},
		{"pointer bundle", &bundle{Runner: runImpl{v: 5}}, 5, true},
		{"nil pointer bundle", (*bundle)(nil), 0, false},
		{"unexported field", hidden{runner: runImpl{v: 9}}, 0, false},
		{"no match", 12, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := PortsOf[runner](fakeModule{name: tc.name, ports: tc.ports})
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.Run() != tc.want {
				t.Fatalf("Run = %d, want %d", got.Run(), tc.want)
			}
		})
	}
}

func TestMustPortsOf_PanicsWithModuleName(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		msg, _ := r.(string)
		testkit.MustContain(t, msg, "module pipeline")
		testkit.MustContain(t, msg, "module.runner")
	}()
	got := MustPortsOf[runner](fakeModule{name: "pipeline", ports: runner(runImpl{v: 1})})
	if got.Run() != 1 {
		t.Fatalf("Run = %d", got.Run())
	}
	_ = MustPortsOf[runner](fakeModule{name: "pipeline"})
	t.Fatal("MustPortsOf did not panic")
}
