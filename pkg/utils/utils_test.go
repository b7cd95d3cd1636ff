package utils

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	if id1 == id2 {
		t.Error("expected different IDs")
	}
	if len(id1) != 36 {
		t.Errorf("expected uuid string, got %s", id1)
	}
}

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("expected prefix 'req_', got %s", id)
	}
	if strings.Contains(id, "-") {
		t.Errorf("expected no dashes, got %s", id)
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal string", "hello", "hello"},
		{"with control chars", "hello\x00world", "helloworld"},
		{"with newline", "hello\nworld", "hello\nworld"},
		{"with tabs", "hello\tworld", "hello\tworld"},
		{"with whitespace", "  hello  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
	if got := NormalizeUsername(" Alice "); got != "alice" {
		t.Errorf("NormalizeUsername() = %q", got)
	}
}

func TestMaskSensitive(t *testing.T) {
	if got := MaskSensitive("secret-token", 3); got != "sec*********" {
		t.Errorf("MaskSensitive() = %q", got)
	}
	if got := MaskSensitive("ab", 3); got != "**" {
		t.Errorf("MaskSensitive() short = %q", got)
	}
	if got := MaskSensitive("clé-été", 3); got != "clé****" {
		t.Errorf("MaskSensitive() multibyte = %q", got)
	}
}

func TestSplitTags(t *testing.T) {
	got := SplitTags(" music, Live ,,music, live, dance ")
	want := []string{"music", "Live", "dance"}
	if len(got) != len(want) {
		t.Fatalf("SplitTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitTags()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if tags := SplitTags(""); len(tags) != 0 {
		t.Errorf("SplitTags(\"\") = %v, want empty", tags)
	}
}
