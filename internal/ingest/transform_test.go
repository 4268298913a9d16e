package ingest

import (
	"strings"
	"testing"
)

func TestPayerKey(t *testing.T) {
	cases := []struct {
		name string
		id   string
		pn   string
		want string
	}{
		{"id wins", "60054", "Example Health", "60054"},
		{"name fallback", "", "Example Health", "EXAMPLE_HEALTH"},
		{"name whitespace collapsed", "", "  Example   Health \t Plan ", "EXAMPLE_HEALTH_PLAN"},
		{"unknown bucket", "", "", unknownEntity},
		{"blank id falls through", "   ", "Example Health", "EXAMPLE_HEALTH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := payerKey(tc.id, tc.pn); got != tc.want {
				t.Errorf("payerKey(%q, %q) = %q, want %q", tc.id, tc.pn, got, tc.want)
			}
		})
	}
}

func TestSyntheticControl(t *testing.T) {
	sha := "a3f1b2c4d5e6f708192a3b4c5d6e7f8090a1b2c3d4e5f60718293a4b5c6d7e8f"

	first := syntheticControl(sha, 0)
	if first == "" || !strings.HasSuffix(first, "-0001") {
		t.Fatalf("syntheticControl = %q", first)
	}
	if again := syntheticControl(sha, 0); again != first {
		t.Errorf("not stable across runs: %q vs %q", again, first)
	}
	if other := syntheticControl(sha, 1); other == first {
		t.Error("adjacent blocks share a control number")
	}
	if otherFile := syntheticControl("b"+sha[1:], 0); otherFile == first {
		t.Error("different files share a control number")
	}
}
