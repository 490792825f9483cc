// Package sqlguard validates and normalizes generated SQL before it touches
// a target database. Only single read-only SELECT statements pass.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
)

// blockedKeywords are rejected anywhere in the statement, on word
// boundaries. Substrings inside identifiers (e.g. a "created_at" column)
// do not match.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "EXECUTE", "EXEC",
}

var blockedPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(blockedKeywords, "|") + `)\b`)

// Validate checks that the statement is a single SELECT with no write or DDL
// keywords. The keyword scan runs over the whole text, string literals
// included, so a smuggled second statement still trips it.
func Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &apperrors.ValidationError{Message: "query is empty"}
	}

	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return &apperrors.ValidationError{Message: "only SELECT queries are allowed"}
	}

	if match := blockedPattern.FindString(trimmed); match != "" {
		keyword := strings.ToUpper(match)
		return &apperrors.ValidationError{
			Message: fmt.Sprintf("query contains prohibited keyword %s", keyword),
			Keyword: keyword,
		}
	}

	if hasSemicolonOutsideStrings(stripTrailingSemicolon(trimmed)) {
		return &apperrors.ValidationError{Message: "multiple SQL statements are not allowed"}
	}

	if flagged := CheckLiterals(trimmed); len(flagged) > 0 {
		return &apperrors.ValidationError{
			Message: fmt.Sprintf("query literal matches injection fingerprint %s", flagged[0].Fingerprint),
		}
	}

	return nil
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(query string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range query {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handles both backslash escape (\') and SQL standard escape ('').
			// A doubled quote exits and immediately re-enters the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon and surrounding
// trailing whitespace.
func stripTrailingSemicolon(query string) string {
	query = strings.TrimRight(query, " \t\n\r")
	if strings.HasSuffix(query, ";") {
		query = strings.TrimRight(strings.TrimSuffix(query, ";"), " \t\n\r")
	}
	return query
}
