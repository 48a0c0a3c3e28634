package matcher

import (
	"sort"

	"doublepost/internal/models"
)

// MatchCandidate is a transient scored (source, target) pair produced in
// bulk during scoring and consumed by the greedy assignment pass.
type MatchCandidate struct {
	SourceIdx  int
	TargetIdx  int
	Confidence float64
}

// FindMatches reconciles the source record set against the target record set
// and returns the complete match result.
//
// The run proceeds in three stages:
//
//  1. The amount prefilter narrows the candidate universe: targets outside
//     the global amount envelope are discarded in one pass, and each
//     surviving (source, target) pair must fall inside the source's
//     individual tolerance range before any description comparison runs.
//  2. Every surviving pair is scored (CalculateConfidence combined with the
//     intelligent-match override as max) and kept as a candidate when the
//     confidence reaches minConfidence.
//  3. Candidates are walked in confidence-descending order, greedily
//     materializing a Match whenever neither side has been claimed yet.
//     Skipped candidates are never retried against other partners.
//
// Sources never claimed land in MissingInTarget, targets never claimed in
// MissingInSource, both ascending. Ties in confidence break by
// (source, target) ascending so identical inputs always produce identical
// results. Empty inputs yield an empty match list with full missing sets.
func FindMatches(source, target []*models.NormalizedRecord, cfg *models.MatchConfig, minConfidence float64, resolver AliasResolver) *models.MatchResult {
	candidates := collectCandidates(source, target, cfg, minConfidence, resolver)

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if candidates[i].SourceIdx != candidates[j].SourceIdx {
			return candidates[i].SourceIdx < candidates[j].SourceIdx
		}
		return candidates[i].TargetIdx < candidates[j].TargetIdx
	})

	matchedSources := make([]bool, len(source))
	matchedTargets := make([]bool, len(target))
	var matches []*models.Match

	for _, c := range candidates {
		if matchedSources[c.SourceIdx] || matchedTargets[c.TargetIdx] {
			continue
		}

		tier := ClassifyConfidenceTier(c.Confidence)
		decision := models.DecisionPending
		if tier == models.TierHigh {
			decision = models.DecisionAccepted
		}

		targetIdx := c.TargetIdx
		matches = append(matches, &models.Match{
			SourceIdx:  c.SourceIdx,
			TargetIdx:  &targetIdx,
			Confidence: c.Confidence,
			Reason:     CalculateReason(source[c.SourceIdx], target[c.TargetIdx]),
			Tier:       tier,
			Decision:   decision,
		})

		matchedSources[c.SourceIdx] = true
		matchedTargets[c.TargetIdx] = true
	}

	missingInTarget := make([]int, 0)
	for i := range source {
		if !matchedSources[i] {
			missingInTarget = append(missingInTarget, i)
		}
	}

	missingInSource := make([]int, 0)
	for j := range target {
		if !matchedTargets[j] {
			missingInSource = append(missingInSource, j)
		}
	}

	return &models.MatchResult{
		Matches:         matches,
		MissingInTarget: missingInTarget,
		MissingInSource: missingInSource,
	}
}

// collectCandidates scores every prefilter-surviving pair and keeps those
// meeting the minimum confidence.
func collectCandidates(source, target []*models.NormalizedRecord, cfg *models.MatchConfig, minConfidence float64, resolver AliasResolver) []MatchCandidate {
	pf := newAmountPrefilter(source, cfg.AmountTolerance)

	// One cheap pass over the whole target set before the pairwise loop.
	eligible := make([]int, 0, len(target))
	for j, rec := range target {
		if pf.admitsGlobally(rec) {
			eligible = append(eligible, j)
		}
	}

	var candidates []MatchCandidate
	for i := range source {
		for _, j := range eligible {
			if !pf.admitsPair(i, target[j]) {
				continue
			}

			confidence := CalculateConfidence(source[i], target[j], cfg, resolver)
			if override, ok := IntelligentMatch(source[i], target[j], resolver); ok && override > confidence {
				confidence = override
			}

			if confidence >= minConfidence {
				candidates = append(candidates, MatchCandidate{
					SourceIdx:  i,
					TargetIdx:  j,
					Confidence: confidence,
				})
			}
		}
	}

	return candidates
}
