package matcher

import (
	"fmt"
	"math"
	"strings"
	"time"

	"doublepost/internal/models"

	"github.com/agnivade/levenshtein"
)

// Sub-score weights. Description carries the most weight because amounts and
// dates collide constantly in personal finance data.
const (
	amountWeight      = 0.3
	dateWeight        = 0.3
	descriptionWeight = 0.4
)

// CalculateConfidence computes the [0, 1] confidence that source and target
// describe the same real-world transaction, as a weighted sum of amount
// equality, date proximity, and description similarity, rounded to 4 decimal
// places.
//
// A missing date or amount on either side contributes 0 to that dimension
// and never raises an error. The only side effect is the alias usage-count
// increment triggered through canonicalization when a resolver is supplied.
// Scoring is symmetric: CalculateConfidence(a, b, ...) == CalculateConfidence(b, a, ...).
func CalculateConfidence(source, target *models.NormalizedRecord, cfg *models.MatchConfig, resolver AliasResolver) float64 {
	// Amount: all-or-nothing within the absolute tolerance.
	amountScore := 0.0
	if source.HasAmount() && target.HasAmount() {
		diff := source.Amount.Sub(*target.Amount).Abs()
		if diff.LessThanOrEqual(cfg.AmountTolerance) {
			amountScore = 1.0
		}
	}

	// Date: 1.0 on the same day, linear decay to 0.0 at the window edge.
	dateScore := 0.0
	if source.HasDate() && target.HasDate() {
		daysDiff := absDaysBetween(*source.Date, *target.Date)
		if daysDiff == 0 {
			dateScore = 1.0
		} else if daysDiff <= cfg.DateWindowDays {
			dateScore = 1.0 - float64(daysDiff)/float64(cfg.DateWindowDays)
		}
	}

	// Description: canonical equality, else normalized edit distance.
	descScore := 0.0
	if source.Description != "" && target.Description != "" {
		sourceCanonical := CanonicalDescription(source.Description, resolver)
		targetCanonical := CanonicalDescription(target.Description, resolver)
		if sourceCanonical == targetCanonical {
			descScore = 1.0
		} else {
			descScore = fuzzyRatio(sourceCanonical, targetCanonical)
		}
	}

	confidence := amountScore*amountWeight + dateScore*dateWeight + descScore*descriptionWeight

	return round4(confidence)
}

// CalculateReason generates a human-readable explanation of match quality,
// summarizing which dimensions drove the score.
func CalculateReason(source, target *models.NormalizedRecord) string {
	var reasons []string

	if source.HasAmount() && target.HasAmount() {
		if source.Amount.Equal(*target.Amount) {
			reasons = append(reasons, "exact amount")
		} else {
			reasons = append(reasons, "different amount")
		}
	}

	if source.HasDate() && target.HasDate() {
		daysDiff := absDaysBetween(*source.Date, *target.Date)
		if daysDiff == 0 {
			reasons = append(reasons, "same date")
		} else {
			reasons = append(reasons, fmt.Sprintf("%d days apart", daysDiff))
		}
	}

	if source.Description != "" && target.Description != "" {
		// Judged case-insensitively so the reason cannot contradict the
		// scorer, which compares canonical forms.
		similarity := fuzzyRatio(strings.ToLower(source.Description), strings.ToLower(target.Description))
		switch {
		case similarity >= 0.95:
			reasons = append(reasons, "nearly identical description")
		case similarity >= 0.80:
			reasons = append(reasons, "similar description")
		default:
			reasons = append(reasons, "different description")
		}
	}

	return strings.Join(reasons, ", ")
}

// fuzzyRatio returns a normalized string similarity in [0, 1] based on
// Levenshtein edit distance over runes: 1 - distance/maxLen. Two empty
// strings are identical.
func fuzzyRatio(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// absDaysBetween returns the whole-day distance between two dates, ignoring
// time of day.
func absDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// round4 rounds to 4 decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
