package slug

import (
	"strings"
	"testing"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Write Report":       "write-report",
		"  JIRA-123: fix!! ": "jira-123-fix",
		"???":                "untitled",
		"":                   "untitled",
	}
	for in, want := range cases {
		if got := Make(in); got != want {
			t.Fatalf("Make(%q) = %q, want %q", in, got, want)
		}
	}
	long := Make(strings.Repeat("ab ", 40))
	if len(long) > MaxLen || strings.HasSuffix(long, "-") {
		t.Fatalf("expected a trimmed slug of at most %d chars, got %q", MaxLen, long)
	}
}
