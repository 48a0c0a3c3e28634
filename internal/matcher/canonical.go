// Package matcher implements the core record matching engine: description
// canonicalization, confidence scoring, the intelligent-match heuristic,
// amount-tolerance prefiltering, and greedy one-to-one assignment between a
// source record set (bank statement) and a target record set (personal
// ledger).
//
// All description identity anywhere in this package flows through a single
// canonical form (CanonicalDescription), so the fuzzy scorer and the
// first-two-words heuristic can never disagree about merchant identity.
//
// Example usage:
//
//	cfg := models.DefaultMatchConfig()
//	result := matcher.FindMatches(source, target, cfg, 0.1, aliasStore)
package matcher

import "strings"

// AliasResolver maps a merchant alias to its canonical primary name. A
// successful resolution is a read-modify-write on the backing store (the
// alias usage counter increments), so resolution is deliberately not modeled
// as a pure lookup.
type AliasResolver interface {
	// ResolvePrimary returns the primary name for the alias and whether a
	// mapping exists. Lookups are case- and whitespace-insensitive.
	ResolvePrimary(alias string) (string, bool)
}

// CanonicalDescription reduces a raw description to the single canonical
// form used for all merchant identity comparison: trim, alias-resolve (when
// a resolver is supplied), lowercase, strip apostrophes.
//
// Calling this twice with the same input and resolver state yields the same
// string; canonicalizing an already-canonical string returns it unchanged.
func CanonicalDescription(description string, resolver AliasResolver) string {
	s := strings.TrimSpace(description)
	if s == "" {
		return ""
	}

	if resolver != nil {
		if primary, ok := resolver.ResolvePrimary(s); ok {
			s = primary
		}
	}

	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "'", "")

	return s
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// firstTwoWords returns the first two whitespace-separated words of a
// canonical description joined by a single space, the single word if there
// is only one, or "" for an empty string.
func firstTwoWords(s string) string {
	words := strings.Fields(s)
	switch {
	case len(words) >= 2:
		return words[0] + " " + words[1]
	case len(words) == 1:
		return words[0]
	default:
		return ""
	}
}
