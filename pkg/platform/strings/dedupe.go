// Package strings provides list-of-string helpers used for scopes and
// configured allowlists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops empty and repeated ones.
// Order of first occurrence is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  dashboard ", "auth-test", "dashboard", ""})
//	// Returns: []string{"dashboard", "auth-test"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitScopes splits a space-delimited scope parameter in order. Repeated
// scopes are kept as sent.
func SplitScopes(raw string) []string {
	return strings.Fields(raw)
}

// DistinctScopes splits a scope parameter and drops repeats.
func DistinctScopes(raw string) []string {
	return DedupeAndTrim(SplitScopes(raw))
}

// SplitList splits a comma-separated list into distinct, trimmed entries.
func SplitList(raw string) []string {
	return DedupeAndTrim(strings.Split(raw, ","))
}
