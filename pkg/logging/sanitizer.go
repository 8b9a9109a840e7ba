package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxErrorMessageLength bounds error messages persisted on runs.
	MaxErrorMessageLength = 2000
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches user:pass@host in URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from a connection string.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError renders err for display to end users: credentials are removed
// and the result is bounded to MaxErrorMessageLength.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return TruncateString(SanitizeConnectionString(err.Error()), MaxErrorMessageLength)
}

// TruncateString truncates a string to at most maxLen bytes and adds ellipsis
// if needed. The cut backs off to a rune boundary so the result stays valid UTF-8.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
