package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Input length constraints
const (
	MaxParticipantNameLength = 50
	MinNameLength            = 1
)

var (
	// Name validation regex - Unicode letters, digits, spaces, apostrophes,
	// hyphens, underscores, dots
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
)

// ValidateText validates free-form display text (questions, option labels)
// with a length cap. Returns the trimmed text.
func ValidateText(text string, maxLen int) (string, error) {
	text = strings.TrimSpace(text)

	if text == "" {
		return "", fmt.Errorf("text cannot be empty")
	}
	if len(text) > maxLen {
		return "", fmt.Errorf("text too long (max %d characters)", maxLen)
	}
	for _, r := range text {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("text contains control characters")
		}
	}

	return text, nil
}

// ValidateParticipantName validates and sanitizes a display name.
func ValidateParticipantName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return "", fmt.Errorf("name too short (min %d characters)", MinNameLength)
	}
	if len(name) > MaxParticipantNameLength {
		return "", fmt.Errorf("name too long (max %d characters)", MaxParticipantNameLength)
	}
	if !nameRegex.MatchString(name) {
		return "", fmt.Errorf("name contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}
	if dangerousCharsRegex.MatchString(name) {
		return "", fmt.Errorf("name contains potentially dangerous characters")
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	return name, nil
}

// SanitizeErrorMessage keeps storage internals out of user-facing errors.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	sensitivePatterns := []string{
		"sql",
		"database",
		"constraint",
		"foreign key",
		"unique",
		"duplicate key",
		"no rows",
		"connection refused",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}
