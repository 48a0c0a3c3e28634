package matcher

import "doublepost/internal/models"

// IntelligentMatchConfidence is the fixed confidence emitted when the
// intelligent-match heuristic fires. It sits exactly at the HIGH tier
// boundary so heuristic matches auto-accept.
const IntelligentMatchConfidence = 0.90

// IntelligentMatch detects the strong-signal pattern that fuzzy similarity
// penalizes too harshly: the same merchant with different store-location
// suffixes ("Simply Noodles 00-08 New York" vs "Simply Noodles 267 Amsterdam
// Ave"). It fires only when:
//
//  1. both amounts are present and exactly equal (no tolerance), and
//  2. both descriptions are present, and
//  3. each canonical description has at least two words, and
//  4. the first two canonical words are identical.
//
// Single-word descriptions never trigger the heuristic, however similar.
// Returns (IntelligentMatchConfidence, true) when it fires; callers combine
// it with the scorer as max(scorer, override), so the heuristic can raise a
// score but never lower one.
func IntelligentMatch(source, target *models.NormalizedRecord, resolver AliasResolver) (float64, bool) {
	if !source.HasAmount() || !target.HasAmount() {
		return 0, false
	}
	if !source.Amount.Equal(*target.Amount) {
		return 0, false
	}

	if source.Description == "" || target.Description == "" {
		return 0, false
	}

	sourceCanonical := CanonicalDescription(source.Description, resolver)
	targetCanonical := CanonicalDescription(target.Description, resolver)

	if wordCount(sourceCanonical) < 2 || wordCount(targetCanonical) < 2 {
		return 0, false
	}

	if firstTwoWords(sourceCanonical) == firstTwoWords(targetCanonical) {
		return IntelligentMatchConfidence, true
	}

	return 0, false
}

// ClassifyConfidenceTier buckets a confidence score for review routing.
func ClassifyConfidenceTier(confidence float64) models.ConfidenceTier {
	switch {
	case confidence >= 0.9:
		return models.TierHigh
	case confidence >= 0.5:
		return models.TierMedium
	case confidence >= 0.1:
		return models.TierLow
	default:
		return models.TierNone
	}
}
