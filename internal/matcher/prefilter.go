package matcher

import (
	"doublepost/internal/models"

	"github.com/shopspring/decimal"
)

// amountPrefilter pre-computes per-source amount bounds so pairs whose
// amounts cannot possibly be within tolerance are excluded before any
// string comparison runs. The tolerance is applied here as a relative
// fraction of each source amount (the historical dual of the scorer's
// absolute reading; both are preserved on purpose).
//
// The filter is purely an optimization: a pair it rejects would have scored
// 0 on the amount dimension under the relative interpretation anyway.
type amountPrefilter struct {
	// lower/upper are indexed by source position; nil entries mark sources
	// with no parsed amount, which admit no pairs.
	lower []*decimal.Decimal
	upper []*decimal.Decimal

	// globalLower/globalUpper form the envelope over all source ranges,
	// used to discard a target with a single comparison.
	globalLower decimal.Decimal
	globalUpper decimal.Decimal
	hasBounds   bool
}

// newAmountPrefilter computes bounds [amount*(1-t), amount*(1+t)] for every
// source amount. Endpoints are min/max-ordered so negative amounts get a
// correct range (for a negative amount the raw "upper" product is the
// numerically smaller value).
func newAmountPrefilter(source []*models.NormalizedRecord, tolerance decimal.Decimal) *amountPrefilter {
	pf := &amountPrefilter{
		lower: make([]*decimal.Decimal, len(source)),
		upper: make([]*decimal.Decimal, len(source)),
	}

	one := decimal.NewFromInt(1)
	low := one.Sub(tolerance)
	high := one.Add(tolerance)

	for i, rec := range source {
		if !rec.HasAmount() {
			continue
		}

		a := rec.Amount.Mul(low)
		b := rec.Amount.Mul(high)
		if a.GreaterThan(b) {
			a, b = b, a
		}

		pf.lower[i] = &a
		pf.upper[i] = &b

		if !pf.hasBounds {
			pf.globalLower = a
			pf.globalUpper = b
			pf.hasBounds = true
			continue
		}
		if a.LessThan(pf.globalLower) {
			pf.globalLower = a
		}
		if b.GreaterThan(pf.globalUpper) {
			pf.globalUpper = b
		}
	}

	return pf
}

// admitsGlobally reports whether the target amount falls inside the envelope
// over all source ranges. Targets outside it cannot pair with any source and
// are discarded in one pass.
func (pf *amountPrefilter) admitsGlobally(target *models.NormalizedRecord) bool {
	if !pf.hasBounds || !target.HasAmount() {
		return false
	}

	return target.Amount.GreaterThanOrEqual(pf.globalLower) &&
		target.Amount.LessThanOrEqual(pf.globalUpper)
}

// admitsPair reports whether the target amount falls inside the given
// source's individual range. Boundaries are inclusive: a target exactly at
// amount*(1±t) is a valid candidate.
func (pf *amountPrefilter) admitsPair(sourceIdx int, target *models.NormalizedRecord) bool {
	if pf.lower[sourceIdx] == nil || !target.HasAmount() {
		return false
	}

	return target.Amount.GreaterThanOrEqual(*pf.lower[sourceIdx]) &&
		target.Amount.LessThanOrEqual(*pf.upper[sourceIdx])
}
