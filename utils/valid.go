// utils/valid.go
package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)
	phoneRegex    = regexp.MustCompile(`^\+?\d{8,15}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	spaceRegex    = regexp.MustCompile(`\s+`)
	scriptRegex   = regexp.MustCompile(`<script[^>]*>.*?</script>`)
)

// SanitizeInput sanitizes user input to prevent XSS and injection attacks
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = html.EscapeString(input)

	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return scriptRegex.ReplaceAllString(input, "")
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims and lowercases a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizePhone strips every whitespace character from a phone number
func NormalizePhone(phone string) string {
	return spaceRegex.ReplaceAllString(phone, "")
}

// SanitizeEmail normalizes and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

// ValidUsername reports whether a normalized username is 3-30 chars of [a-z0-9_]
func ValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// ValidPhone reports whether a normalized phone is 8-15 digits with an optional leading +
func ValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// StripPngExt drops a trailing ".png" from a link id or file name
func StripPngExt(idOrName string) string {
	return strings.TrimSuffix(idOrName, ".png")
}
