package testkit

import (
	"sync"
	"testing"
	"time"
)

var (
	greet   = func(name string) string { return "hello " + name }
	retries = 3
)

func TestSwap_RestoresAfterSubtest(t *testing.T) {
	t.Run("func", func(t *testing.T) {
		Swap(t, &greet, func(string) string { return "stubbed" })
		if got := greet("x"); got != "stubbed" {
			t.Fatalf("greet = %q", got)
		}
	})
	t.Run("int", func(t *testing.T) {
		Swap(t, &retries, 0)
		if retries != 0 {
			t.Fatalf("retries = %d", retries)
		}
	})

	if got := greet("x"); got != "hello x" {
		t.Fatalf("greet not restored: %q", got)
	}
	if retries != 3 {
		t.Fatalf("retries not restored: %d", retries)
	}
}

func TestSerial_NoOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		overlap bool
	)
	enter := func() {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()
	}
	leave := func() {
		mu.Lock()
		active--
		mu.Unlock()
	}

	t.Run("group", func(t *testing.T) {
		for _, name := range []string{"a", "b", "c"} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				Serial(t)
				enter()
				time.Sleep(20 * time.Millisecond)
				leave()
			})
		}
	})

	if overlap {
		t.Fatal("Serial sections overlapped")
	}
}
