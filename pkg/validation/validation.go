package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UsernameRegex validates username characters
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// SlugRegex validates page slugs
	SlugRegex = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

	// HexColorRegex accepts #RGB and #RRGGBB
	HexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Limits shared by the HTTP layer and the domain model.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 5000
	MaxTags              = 15
	MaxTagLength         = 30
	MaxDisplayNameLength = 80
	MaxBioLength         = 500
	MaxReasonLength      = 500
)

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateUsername validates username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePassword validates password. bcrypt ignores input past 72 bytes.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return fmt.Errorf("password is too long (max 72 bytes)")
	}
	return nil
}

// ValidateVideoTitle validates a clip title
func ValidateVideoTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if !utf8.ValidString(title) {
		return fmt.Errorf("title contains invalid characters")
	}
	return ValidateStringLength(title, 1, MaxTitleLength, "title")
}

// ValidateTags checks the tag count and the length of every tag.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags must not be empty")
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return fmt.Errorf("tag %q is too long (max %d characters)", tag, MaxTagLength)
		}
	}
	return nil
}

// ValidateSlug validates a page slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if !SlugRegex.MatchString(slug) {
		return fmt.Errorf("invalid slug (lowercase letters, digits and dashes, max 64)")
	}
	return nil
}

// ValidateHexColor validates a #RGB or #RRGGBB colour
func ValidateHexColor(color, fieldName string) error {
	if !HexColorRegex.MatchString(color) {
		return fmt.Errorf("%s must be a hex colour like #1a2b3c", fieldName)
	}
	return nil
}

// ValidateURL validates an http or https URL
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateOptionalURL accepts an empty string or a valid URL.
func ValidateOptionalURL(urlStr string) error {
	if urlStr == "" {
		return nil
	}
	return ValidateURL(urlStr)
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
