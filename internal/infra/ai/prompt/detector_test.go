package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGetUserPromptTruncatesByCharacter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"ascii under limit", strings.Repeat("a", MaxContentChars), MaxContentChars},
		{"ascii over limit", strings.Repeat("a", MaxContentChars+10), MaxContentChars},
		{"multibyte at limit", strings.Repeat("é", MaxContentChars), MaxContentChars},
		{"multibyte over limit", strings.Repeat("日", MaxContentChars+1), MaxContentChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetUserPrompt("t", "txt", tt.content)
			_, body, ok := strings.Cut(got, "Content:\n")
			if !ok {
				t.Fatalf("Expected a content section, got %q", got[:80])
			}
			if !utf8.ValidString(body) {
				t.Fatal("Expected valid UTF-8 content")
			}
			if n := utf8.RuneCountInString(body); n != tt.want {
				t.Errorf("Expected %d characters, got %d", tt.want, n)
			}
		})
	}
}

func TestGetUserPromptWithoutContent(t *testing.T) {
	got := GetUserPrompt("Payroll", "pdf", "")
	if !strings.Contains(got, "Title: Payroll\nFile type: pdf\n") {
		t.Errorf("Expected metadata lines, got %q", got)
	}
	if !strings.Contains(got, "not available") {
		t.Errorf("Expected a metadata-only note, got %q", got)
	}
}
