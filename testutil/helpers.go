// =============================================================================
// Test helpers
// =============================================================================
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertOutputEqual(t, want, got)
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Contexts
// =============================================================================

// TestContext returns a context cancelled when the test ends.
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout returns a context with a custom timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already cancelled context.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// Assertions
// =============================================================================

// AssertOutputEqual reports a structural diff between two decoded outputs.
func AssertOutputEqual(t *testing.T, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Data
// =============================================================================

// MustParseYAML decodes s into a T and panics on failure.
func MustParseYAML[T any](s string) T {
	var v T
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}
