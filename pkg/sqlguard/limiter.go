package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRowLimit caps result sets handed back to agents and API callers.
const DefaultRowLimit = 20

var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\b`)

// EnsureLimit appends a row limit to queries that do not already carry one.
// A single trailing semicolon is stripped first so the clause lands inside
// the statement. Queries that mention LIMIT anywhere are returned unchanged,
// which makes the operation idempotent.
func EnsureLimit(query string, limit int) string {
	if limitPattern.MatchString(query) {
		return query
	}
	trimmed := stripTrailingSemicolon(strings.TrimSpace(query))
	if trimmed == "" {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// ForTestRun rewrites a candidate query for the generator's self-test pass:
// the statement is capped at one row so probing is cheap.
func ForTestRun(query string) string {
	trimmed := stripTrailingSemicolon(strings.TrimSpace(query))
	if limitPattern.MatchString(trimmed) {
		return trimmed
	}
	return trimmed + " LIMIT 1"
}
