package testkit

import (
	"sync"
	"testing"
)

// serial guards package-level seams shared across parallel tests
var serial sync.Mutex

// Swap replaces *target with v until the test and its subtests finish
func Swap[T any](t *testing.T, target *T, v T) {
	t.Helper()
	if target == nil {
		t.Fatal("testkit.Swap: nil target")
	}
	prev := *target
	*target = v
	t.Cleanup(func() { *target = prev })
}

// Serial holds the seam lock for the rest of the test; pair it with Swap on package vars
func Serial(t *testing.T) {
	t.Helper()
	serial.Lock()
	t.Cleanup(serial.Unlock)
}
