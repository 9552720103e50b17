// Package strings provides string list helpers for configuration values.
package strings

import (
	"strings"
)

// dedupeTrimmed trims each element and drops empties and repeats, keeping
// the first occurrence's position.
func dedupeTrimmed(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
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

// SplitList splits a comma-separated setting such as "k1:9092, k2:9092"
// into its distinct non-empty items.
func SplitList(v string) []string {
	return dedupeTrimmed(strings.Split(v, ","))
}
