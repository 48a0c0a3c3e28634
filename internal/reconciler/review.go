package reconciler

import (
	"doublepost/internal/matcher"
	"doublepost/internal/models"
	"doublepost/pkg/errors"
)

// ApplyDecision records the user's verdict on one match in the result.
// Decisions can be revised in either direction; only the Decision field of
// the match changes.
func ApplyDecision(result *Result, matchIdx int, decision models.MatchDecision) error {
	if !decision.IsValid() {
		return errors.MatchingError(errors.CodeInvalidDecision, "apply decision", nil).
			WithContext("decision", string(decision))
	}
	if matchIdx < 0 || matchIdx >= len(result.MatchResult.Matches) {
		return errors.ValidationError(errors.CodeOutOfRange, "match_idx", matchIdx, nil).
			WithContext("matches", len(result.MatchResult.Matches))
	}

	result.MatchResult.Matches[matchIdx].Decision = decision
	return nil
}

// MergeManualMatch validates a manual pairing against the run result and
// merges it in: the match is appended and both indices leave the missing
// sets. A pairing that would double-book either side is rejected.
func MergeManualMatch(result *Result, sourceIdx, targetIdx int) (*models.Match, error) {
	match, err := matcher.CreateManualMatch(result.Source, result.Target, sourceIdx, targetIdx)
	if err != nil {
		return nil, err
	}

	for _, existing := range result.MatchResult.Matches {
		if existing.SourceIdx == sourceIdx {
			return nil, errors.MatchingError(errors.CodeMatchConflict, "manual match", nil).
				WithContext("source_idx", sourceIdx)
		}
		if existing.TargetIdx != nil && *existing.TargetIdx == targetIdx {
			return nil, errors.MatchingError(errors.CodeMatchConflict, "manual match", nil).
				WithContext("target_idx", targetIdx)
		}
	}

	result.MatchResult.Matches = append(result.MatchResult.Matches, match)
	result.MatchResult.MissingInTarget = removeIndex(result.MatchResult.MissingInTarget, sourceIdx)
	result.MatchResult.MissingInSource = removeIndex(result.MatchResult.MissingInSource, targetIdx)
	result.Summary = buildSummary(result)

	return match, nil
}

func removeIndex(indices []int, idx int) []int {
	out := indices[:0]
	for _, v := range indices {
		if v != idx {
			out = append(out, v)
		}
	}
	return out
}
