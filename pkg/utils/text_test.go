package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := CollapseWhitespace("  how to\n\tuse   seo tools?  ")
	if got != "how to use seo tools?" {
		t.Errorf("got %q", got)
	}
	if CollapseWhitespace(" \n ") != "" {
		t.Error("blank input should collapse to empty")
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"seo":     "Seo",
		"KEYWORD": "Keyword",
		"éclair":  "Éclair",
	}
	for in, want := range tests {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}
