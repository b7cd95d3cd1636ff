package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid email with subdomain", "user@mail.example.com", false},
		{"empty email", "", true},
		{"invalid format", "invalid-email", true},
		{"missing @", "userexample.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
		{"valid with plus", "user+tag@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid username", "user123", false},
		{"valid with underscore", "user_name", false},
		{"valid with dash", "user-name", false},
		{"too short", "ab", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid chars", "user name", true},
		{"invalid chars 2", "user@name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "password123", false},
		{"minimum length", "pass1234", false},
		{"empty", "", true},
		{"too short", "pass", true},
		{"too long", strings.Repeat("a", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVideoTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"valid", "My first clip", false},
		{"unicode", "Día de campo", false},
		{"blank", "   ", true},
		{"max length", strings.Repeat("a", MaxTitleLength), false},
		{"too long", strings.Repeat("a", MaxTitleLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideoTitle(tt.title)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVideoTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = "tag"
	}

	tests := []struct {
		name    string
		tags    []string
		wantErr bool
	}{
		{"none", nil, false},
		{"valid", []string{"music", "live"}, false},
		{"too many", many, true},
		{"empty tag", []string{"ok", " "}, true},
		{"tag too long", []string{strings.Repeat("x", MaxTagLength+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTags(tt.tags)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"valid", "about-us", false},
		{"digits", "faq-2", false},
		{"empty", "", true},
		{"uppercase", "About", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlug() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHexColor(t *testing.T) {
	for _, ok := range []string{"#fff", "#1A2b3C"} {
		if err := ValidateHexColor(ok, "primary"); err != nil {
			t.Errorf("ValidateHexColor(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "fff", "#ffff", "#gggggg", "red"} {
		if err := ValidateHexColor(bad, "primary"); err == nil {
			t.Errorf("ValidateHexColor(%q) expected error", bad)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https", "https://example.com/logo.png", false},
		{"empty", "", true},
		{"websocket scheme", "ws://example.com", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no host", "http://", true},
		{"invalid format", "not-a-url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateOptionalURL(""); err != nil {
		t.Errorf("ValidateOptionalURL(\"\") unexpected error: %v", err)
	}
}

func TestValidateStringLength(t *testing.T) {
	if err := ValidateStringLength("héllo", 1, 5, "bio"); err != nil {
		t.Errorf("unexpected error counting runes: %v", err)
	}
	if err := ValidateStringLength("", 1, 5, "bio"); err == nil {
		t.Error("expected error for short string")
	}
	if err := ValidateNonEmptyString("  ", "reason"); err == nil {
		t.Error("expected error for blank string")
	}
}
