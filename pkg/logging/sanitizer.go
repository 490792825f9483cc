package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens as sent to LLM providers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)

	// API keys in query-string or DSN form
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host credentials inside URL-style connection strings
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any target database DSN.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Driver and provider errors can echo DSNs and auth headers back verbatim.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeQuery truncates and sanitizes a SQL query for logging.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := TruncateString(query, MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
