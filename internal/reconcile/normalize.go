// Package reconcile implements email normalization, lookup building, and
// the set reconciliation that decides which sender accounts need attaching
// to a campaign.
package reconcile

import (
	"regexp"
	"strings"
)

// emailPattern is the strict address shape used as the canonical matching
// key: local part, @, domain labels, and a TLD of at least two letters.
// Anchored, so substrings never match.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NormalizeEmail canonicalizes a raw string into a comparable email key.
// The input is trimmed and lowercased; anything that then fails the shape
// check normalizes to absence, never to a partial string. Pure and
// deterministic, which the dedup below relies on.
func NormalizeEmail(raw string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// ExtractUnique normalizes each raw value, drops invalid ones, and removes
// duplicates while preserving first-seen order.
func ExtractUnique(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var unique []string

	for _, r := range raw {
		email, ok := NormalizeEmail(r)
		if !ok {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		unique = append(unique, email)
	}
	return unique
}
