// Package strings normalizes the term lists used by moderation policy
// (keyword lists, tags, evidence labels).
package strings

import (
	"slices"
	"strings"
	"unicode"
)

// DedupeAndTrim removes duplicates and blanks, trimming each element.
// Order is preserved.
//
//	DedupeAndTrim([]string{"  hash_match ", "tag", "hash_match", ""})
//	// []string{"hash_match", "tag"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// NormalizeTerms is DedupeAndTrim with lowercasing, for case-insensitive
// term and tag matching.
func NormalizeTerms(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}
	return result
}

// MatchTerms returns the normalized terms that occur in text as whole
// words, ignoring case. A multi-word term matches a contiguous run of words.
//
//	MatchTerms("Teen model", []string{"teen"})     // []string{"teen"}
//	MatchTerms("nineteen canteen", []string{"teen"}) // nil
func MatchTerms(text string, terms []string) []string {
	if text == "" || len(terms) == 0 {
		return nil
	}
	words := splitWords(text)
	var hits []string
	for _, term := range terms {
		if containsRun(words, splitWords(term)) {
			hits = append(hits, term)
		}
	}
	return hits
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsRun(words, run []string) bool {
	if len(run) == 0 || len(run) > len(words) {
		return false
	}
	for i := 0; i+len(run) <= len(words); i++ {
		if slices.Equal(words[i:i+len(run)], run) {
			return true
		}
	}
	return false
}
