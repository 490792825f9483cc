package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult reports a string literal that looks like an injection
// payload rather than plain data.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The literal content that failed the check
}

// CheckLiterals runs libinjection over the contents of each single-quoted
// string literal in the query. The keyword blocklist catches statement-level
// abuse; this catches payloads hiding inside literals (quote breakouts,
// tautologies) that keyword scanning cannot see.
//
// Returns one result per flagged literal; an empty slice means clean.
func CheckLiterals(query string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, lit := range extractStringLiterals(query) {
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			results = append(results, &InjectionCheckResult{
				IsSQLi:      true,
				Fingerprint: string(fingerprint),
				Literal:     lit,
			})
		}
	}
	return results
}

// extractStringLiterals returns the contents of single-quoted literals,
// with SQL doubled-quote escapes collapsed.
func extractStringLiterals(query string) []string {
	var literals []string
	runes := []rune(query)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '\'' {
			continue
		}
		var content []rune
		i++
		for i < len(runes) {
			if runes[i] == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					content = append(content, '\'')
					i += 2
					continue
				}
				break
			}
			content = append(content, runes[i])
			i++
		}
		literals = append(literals, string(content))
	}
	return literals
}
