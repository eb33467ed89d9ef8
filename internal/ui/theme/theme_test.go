package theme

import (
	"strings"
	"testing"
)

func TestStateKeepsLabel(t *testing.T) {
	for _, s := range []string{"ACTIVE", "PAUSED", "STOPPED", "SPLIT", "weird"} {
		if got := State(s); !strings.Contains(got, s) {
			t.Fatalf("State(%q) = %q", s, got)
		}
	}
}
