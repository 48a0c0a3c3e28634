// Package models defines the data structures shared by the matching engine,
// the alias store, and the CLI: normalized transaction records, matches,
// match results, and the matching configuration.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchDecision represents the user's decision on a match.
type MatchDecision string

const (
	// DecisionPending means the match is awaiting user review.
	DecisionPending MatchDecision = "pending"
	// DecisionAccepted means the match was accepted (by the user, or
	// automatically for HIGH tier matches).
	DecisionAccepted MatchDecision = "accepted"
	// DecisionRejected means the user rejected the match.
	DecisionRejected MatchDecision = "rejected"
)

// IsValid checks if the decision is one of the known values.
func (d MatchDecision) IsValid() bool {
	return d == DecisionPending || d == DecisionAccepted || d == DecisionRejected
}

// ConfidenceTier classifies a confidence score into a review bucket.
type ConfidenceTier string

const (
	// TierHigh covers scores >= 0.90. Auto-accepted.
	TierHigh ConfidenceTier = "high"
	// TierMedium covers scores in [0.50, 0.90). Pending review.
	TierMedium ConfidenceTier = "medium"
	// TierLow covers scores in [0.10, 0.50). Weak suggestion.
	TierLow ConfidenceTier = "low"
	// TierNone covers scores below 0.10. Excluded from results.
	TierNone ConfidenceTier = "none"
)

// String returns the string representation of the tier.
func (t ConfidenceTier) String() string {
	return string(t)
}

// NormalizedRecord is a standardized transaction row from either input set.
// Records are identified within their owning slice by 0-based position; the
// struct itself carries no identity and is not mutated after construction.
//
// A nil Date or Amount means the upstream loader could not parse that cell.
// Missing fields degrade to a zero sub-score during matching, they never
// raise errors.
type NormalizedRecord struct {
	Date        *time.Time       `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description"`
}

// NewRecord creates a fully-populated NormalizedRecord.
func NewRecord(date time.Time, amount decimal.Decimal, description string) *NormalizedRecord {
	return &NormalizedRecord{
		Date:        &date,
		Amount:      &amount,
		Description: description,
	}
}

// HasDate reports whether the record carries a parsed date.
func (r *NormalizedRecord) HasDate() bool {
	return r.Date != nil
}

// HasAmount reports whether the record carries a parsed amount.
func (r *NormalizedRecord) HasAmount() bool {
	return r.Amount != nil
}

// String returns a human-readable representation of the record.
func (r *NormalizedRecord) String() string {
	date := "?"
	if r.Date != nil {
		date = r.Date.Format("2006-01-02")
	}
	amount := "?"
	if r.Amount != nil {
		amount = r.Amount.String()
	}
	return fmt.Sprintf("Record{Date: %s, Amount: %s, Description: %q}", date, amount, r.Description)
}

// Match links a source record to a target record with a scored confidence.
// TargetIdx is nil when no counterpart was found for the source. Only
// Decision may change after creation; everything else is fixed at scoring
// time.
type Match struct {
	SourceIdx  int            `json:"source_idx"`
	TargetIdx  *int           `json:"target_idx,omitempty"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Tier       ConfidenceTier `json:"tier"`
	Decision   MatchDecision  `json:"decision"`
	Manual     bool           `json:"manual"`
}

// HasTarget reports whether the match claims a target record.
func (m *Match) HasTarget() bool {
	return m.TargetIdx != nil
}

// String returns a human-readable representation of the match.
func (m *Match) String() string {
	target := "none"
	if m.TargetIdx != nil {
		target = fmt.Sprintf("%d", *m.TargetIdx)
	}
	return fmt.Sprintf("Match{Source: %d, Target: %s, Confidence: %.4f, Tier: %s, Decision: %s}",
		m.SourceIdx, target, m.Confidence, m.Tier, m.Decision)
}

// MatchResult is the aggregate outcome of one matching run.
//
// Invariants:
//   - every target index appears in at most one match (no double-booking)
//   - every source index appears in exactly one of a match's SourceIdx or
//     MissingInTarget
type MatchResult struct {
	Matches         []*Match `json:"matches"`
	MissingInTarget []int    `json:"missing_in_target"`
	MissingInSource []int    `json:"missing_in_source"`
}

// Validate checks the result invariants against the given set sizes.
func (mr *MatchResult) Validate(sourceLen, targetLen int) error {
	seenSources := make(map[int]bool, len(mr.Matches))
	seenTargets := make(map[int]bool, len(mr.Matches))

	for _, m := range mr.Matches {
		if m.SourceIdx < 0 || m.SourceIdx >= sourceLen {
			return fmt.Errorf("match source index %d out of range [0, %d)", m.SourceIdx, sourceLen)
		}
		if seenSources[m.SourceIdx] {
			return fmt.Errorf("source index %d appears in more than one match", m.SourceIdx)
		}
		seenSources[m.SourceIdx] = true

		if m.TargetIdx != nil {
			if *m.TargetIdx < 0 || *m.TargetIdx >= targetLen {
				return fmt.Errorf("match target index %d out of range [0, %d)", *m.TargetIdx, targetLen)
			}
			if seenTargets[*m.TargetIdx] {
				return fmt.Errorf("target index %d is claimed by more than one match", *m.TargetIdx)
			}
			seenTargets[*m.TargetIdx] = true
		}
	}

	for _, idx := range mr.MissingInTarget {
		if seenSources[idx] {
			return fmt.Errorf("source index %d is both matched and missing in target", idx)
		}
		seenSources[idx] = true
	}

	if len(seenSources) != sourceLen {
		return fmt.Errorf("expected %d source indices accounted for, got %d", sourceLen, len(seenSources))
	}

	return nil
}

// MatchedTargets returns the set of target indices claimed by matches.
func (mr *MatchResult) MatchedTargets() map[int]bool {
	claimed := make(map[int]bool, len(mr.Matches))
	for _, m := range mr.Matches {
		if m.TargetIdx != nil {
			claimed[*m.TargetIdx] = true
		}
	}
	return claimed
}

// MatchConfig holds the tunable parameters of the matching algorithm.
//
// AmountTolerance carries two historical readings: the confidence scorer
// applies it as an absolute currency delta, while the candidate prefilter
// applies it as a relative fraction of each source amount. Both are kept
// deliberately; see the matcher package.
type MatchConfig struct {
	// Threshold is the advisory auto-accept cutoff. Tier classification
	// supersedes it for decisions; it is retained for reporting.
	Threshold float64 `json:"threshold"`

	// DateWindowDays is the horizon of the linear date-proximity decay.
	DateWindowDays int `json:"date_window_days"`

	// AmountTolerance bounds amount comparison (see note above).
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`
}

// DefaultMatchConfig returns the standard configuration.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Threshold:       0.7,
		DateWindowDays:  3,
		AmountTolerance: decimal.NewFromFloat(0.01),
	}
}

// Validate checks if the configuration is usable.
func (mc *MatchConfig) Validate() error {
	if mc.Threshold < 0.0 || mc.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0: %f", mc.Threshold)
	}

	if mc.DateWindowDays <= 0 {
		return fmt.Errorf("date window days must be positive: %d", mc.DateWindowDays)
	}

	if mc.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", mc.AmountTolerance.String())
	}

	return nil
}

// Clone creates a copy of the configuration.
func (mc *MatchConfig) Clone() *MatchConfig {
	if mc == nil {
		return nil
	}

	return &MatchConfig{
		Threshold:       mc.Threshold,
		DateWindowDays:  mc.DateWindowDays,
		AmountTolerance: mc.AmountTolerance,
	}
}

// String returns a human-readable description of the configuration.
func (mc *MatchConfig) String() string {
	return fmt.Sprintf("MatchConfig{Threshold: %.2f, DateWindow: %d days, AmountTolerance: %s}",
		mc.Threshold, mc.DateWindowDays, mc.AmountTolerance.String())
}

// MarshalJSON implements custom JSON marshaling so the tolerance renders as
// a plain decimal string.
func (mc *MatchConfig) MarshalJSON() ([]byte, error) {
	type Alias MatchConfig
	return json.Marshal(&struct {
		AmountTolerance string `json:"amount_tolerance"`
		*Alias
	}{
		AmountTolerance: mc.AmountTolerance.String(),
		Alias:           (*Alias)(mc),
	})
}

// ParseAmount parses a currency amount from a raw CSV cell, tolerating
// common formatting: currency symbols, thousands separators, and
// parenthesized negatives.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	if negative {
		d = d.Neg()
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using the
// formats commonly found in bank exports.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"2006/01/02",
		"02-01-2006",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}
