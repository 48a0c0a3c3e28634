package matcher

import (
	"doublepost/internal/models"
	"doublepost/pkg/errors"
)

// CreateManualMatch builds a user-asserted match between the given source
// and target records. The pair is scored with the standard confidence
// calculation under the default configuration so the user still sees how
// plausible their pairing looks, but the intelligent-match heuristic and
// alias resolution are skipped: the user has already decided these records
// belong together, so no inference is needed.
//
// The resulting match is flagged Manual and always starts as pending. A
// high score does not auto-accept here; an explicit pairing deserves an
// explicit confirmation.
func CreateManualMatch(source, target []*models.NormalizedRecord, sourceIdx, targetIdx int) (*models.Match, error) {
	if sourceIdx < 0 || sourceIdx >= len(source) {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "source_idx", sourceIdx, nil).
			WithContext("source_len", len(source))
	}
	if targetIdx < 0 || targetIdx >= len(target) {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "target_idx", targetIdx, nil).
			WithContext("target_len", len(target))
	}

	cfg := models.DefaultMatchConfig()
	confidence := CalculateConfidence(source[sourceIdx], target[targetIdx], cfg, nil)

	idx := targetIdx
	return &models.Match{
		SourceIdx:  sourceIdx,
		TargetIdx:  &idx,
		Confidence: confidence,
		Reason:     "Manual match: " + CalculateReason(source[sourceIdx], target[targetIdx]),
		Tier:       ClassifyConfidenceTier(confidence),
		Decision:   models.DecisionPending,
		Manual:     true,
	}, nil
}
