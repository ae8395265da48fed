// Package strings holds small helpers for cleaning list-valued settings.
package strings

import "strings"

// DedupeAndTrim trims every value and drops blanks and repeats, keeping the
// first occurrence. "kafka:9092, ,kafka:9092" becomes ["kafka:9092"].
func DedupeAndTrim(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
