// Package extract scrapes medication and recommendation mentions out of
// free-text specialist assessments. The patterns are best-effort and lossy:
// an empty result is a valid outcome, not an error.
package extract

import (
	"regexp"
	"strings"
)

var (
	// Drug-like names after an advisory verb. Verb and first word match any
	// casing; continuation words must be capitalized so trailing prose is
	// not swallowed.
	verbMedPattern = regexp.MustCompile(`(?i:take|consider|try|use)\s+([A-Za-z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

	// Capitalized names directly adjacent to a dosage unit.
	dosageMedPattern = regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s*\d+\s*(?:mg|mcg|g|ml)\b`)

	// Lowercase names introduced as over-the-counter.
	otcPhrasePattern = regexp.MustCompile(`(?i)over-the-counter\s+([a-z]+(?:\s+[a-z]+)*)`)
)

// Common over-the-counter medications matched anywhere in the text.
var otcMedications = []string{
	"ibuprofen",
	"acetaminophen",
	"aspirin",
	"naproxen",
	"antihistamine",
}

var recommendationKeywords = []string{"recommend", "suggest", "advise", "should"}

const (
	maxRecommendations   = 5
	minRecommendationLen = 10
)

// Medications pulls probable medication names from a specialist response.
// Duplicates are removed; first-seen order is kept so output is stable.
func Medications(response string) []string {
	var found []string
	for _, pattern := range []*regexp.Regexp{verbMedPattern, dosageMedPattern, otcPhrasePattern} {
		for _, match := range pattern.FindAllStringSubmatch(response, -1) {
			if len(match) > 1 {
				found = append(found, strings.TrimSpace(match[1]))
			}
		}
	}

	lower := strings.ToLower(response)
	for _, med := range otcMedications {
		if strings.Contains(lower, med) {
			found = append(found, titleCase(med))
		}
	}

	return dedupe(found)
}

// Recommendations pulls advisory lines from a specialist response, capped at
// five entries.
func Recommendations(response string) []string {
	var recs []string
	for _, line := range strings.Split(response, "\n") {
		lower := strings.ToLower(line)
		if !containsAny(lower, recommendationKeywords) {
			continue
		}
		clean := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "-•*"))
		if len(clean) > minRecommendationLen {
			recs = append(recs, clean)
		}
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
