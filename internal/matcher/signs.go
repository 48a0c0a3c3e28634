package matcher

import "doublepost/internal/models"

// SignConvention describes how an export encodes debits.
type SignConvention string

const (
	// SignNegative means debits appear as negative amounts.
	SignNegative SignConvention = "negative"
	// SignPositive means debits appear as positive amounts.
	SignPositive SignConvention = "positive"
	// SignDebitColumn means debits live in a dedicated column and the
	// amount sign is not meaningful on its own.
	SignDebitColumn SignConvention = "debit_col"
)

// NormalizeSignConventions reconciles the sign conventions of the two
// record sets before matching. When the sides disagree on how debits are
// signed, every target amount is negated so that amount comparisons become
// meaningful. Exports using a dedicated debit column are left untouched;
// their signs were already fixed up during parsing.
//
// The target slice is never mutated. When negation applies, fresh records
// with fresh amounts are returned; otherwise the input slice is returned
// as-is.
func NormalizeSignConventions(target []*models.NormalizedRecord, sourceSigns, targetSigns SignConvention) []*models.NormalizedRecord {
	if sourceSigns == targetSigns {
		return target
	}
	if sourceSigns == SignDebitColumn || targetSigns == SignDebitColumn {
		return target
	}

	normalized := make([]*models.NormalizedRecord, len(target))
	for i, rec := range target {
		clone := *rec
		if rec.Amount != nil {
			negated := rec.Amount.Neg()
			clone.Amount = &negated
		}
		normalized[i] = &clone
	}
	return normalized
}
