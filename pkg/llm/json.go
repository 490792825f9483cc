package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object or array out of a model response.
// Agents ask for bare JSON, but models still wrap it in markdown fences or
// surrounding prose, so the scan looks for the first balanced structure
// rather than trusting the whole reply.
func ExtractJSON(response string) (string, error) {
	objStart := strings.IndexByte(response, '{')
	arrStart := strings.IndexByte(response, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if candidate, ok := scanBalanced(response, '{', '}'); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	if arrStart >= 0 {
		if candidate, ok := scanBalanced(response, '[', ']'); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	if trimmed := strings.TrimSpace(response); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", fmt.Errorf("no valid JSON found in response")
}

// scanBalanced returns the first substring running from open to its matching
// close. Brackets inside string literals do not count toward the depth.
func scanBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse extracts the response's JSON payload and unmarshals it.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	payload, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return result, nil
}
