package markdown

import (
	"strings"
	"testing"
)

func TestParseRenderRoundTrip(t *testing.T) {
	doc := Document{Meta: map[string]any{"id": "s1", "duration_minutes": 25}, Body: "# Title\n"}
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "---\n") || !strings.Contains(out, "\n---\n\n# Title\n") {
		t.Fatalf("unexpected layout:\n%s", out)
	}
	back, err := Parse(strings.ReplaceAll(out, "\n", "\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Meta["id"] != "s1" || back.Meta["duration_minutes"] != 25 || back.Body != "\n# Title\n" {
		t.Fatalf("unexpected document %#v", back)
	}
}

func TestParseWithoutHeader(t *testing.T) {
	doc, err := Parse("just text")
	if err != nil || len(doc.Meta) != 0 || doc.Body != "just text" {
		t.Fatalf("unexpected %#v / %v", doc, err)
	}
	if _, err := Parse("---\nid: x\n"); err == nil {
		t.Fatalf("expected missing separator error")
	}
}

func TestReplaceManagedBlock(t *testing.T) {
	const start, end = "<!-- a -->", "<!-- b -->"
	body := ReplaceManagedBlock("notes", start, end, "one")
	if body != "notes\n\n<!-- a -->\none\n<!-- b -->\n" {
		t.Fatalf("append: %q", body)
	}
	body = ReplaceManagedBlock(body, start, end, "two")
	if strings.Count(body, start) != 1 || !strings.Contains(body, "\ntwo\n") || !strings.HasPrefix(body, "notes") {
		t.Fatalf("replace: %q", body)
	}
	if got := ReplaceManagedBlock("", start, end, "x"); got != "<!-- a -->\nx\n<!-- b -->\n" {
		t.Fatalf("empty: %q", got)
	}
}
