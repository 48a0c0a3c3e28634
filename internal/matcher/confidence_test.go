package matcher

import (
	"math"
	"strings"
	"testing"
	"time"

	"doublepost/internal/models"

	"github.com/shopspring/decimal"
)

// record builds a fully-populated test record.
func record(date string, amount float64, description string) *models.NormalizedRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.NewRecord(d, decimal.NewFromFloat(amount), description)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateConfidenceExactMatch(t *testing.T) {
	cfg := models.DefaultMatchConfig()

	source := record("2024-03-15", -15.99, "NETFLIX.COM")
	target := record("2024-03-15", -15.99, "Netflix.com")

	got := CalculateConfidence(source, target, cfg, nil)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected confidence 1.0 for exact match, got %f", got)
	}
}

func TestCalculateConfidenceSameAmountDifferentDescription(t *testing.T) {
	cfg := models.DefaultMatchConfig()

	source := record("2024-03-15", 100.00, "StarBucks Store #443")
	target := record("2024-03-15", 100.00, "SBX 443 SEATTLE")

	got := CalculateConfidence(source, target, cfg, nil)

	// Amount and date each contribute their full 0.3; the descriptions share
	// little, so the total lands in the medium band.
	if got < 0.6 || got >= 0.9 {
		t.Errorf("expected confidence in [0.6, 0.9), got %f", got)
	}
	if tier := ClassifyConfidenceTier(got); tier != models.TierMedium {
		t.Errorf("expected medium tier, got %s", tier)
	}
}

func TestCalculateConfidenceDateDecay(t *testing.T) {
	cfg := models.DefaultMatchConfig() // 3-day window

	tests := []struct {
		name          string
		targetDate    string
		expectedScore float64 // date sub-score only
	}{
		{"same day", "2024-03-15", 1.0},
		{"one day apart", "2024-03-16", 1.0 - 1.0/3.0},
		{"two days apart", "2024-03-17", 1.0 - 2.0/3.0},
		{"at window edge", "2024-03-18", 0.0},
		{"outside window", "2024-03-25", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := record("2024-03-15", 50.00, "Grocery Store")
			target := record(tt.targetDate, 50.00, "Grocery Store")

			got := CalculateConfidence(source, target, cfg, nil)
			expected := round4(0.3 + 0.3*tt.expectedScore + 0.4)
			if !almostEqual(got, expected) {
				t.Errorf("expected confidence %f, got %f", expected, got)
			}
		})
	}
}

func TestCalculateConfidenceAmountTolerance(t *testing.T) {
	cfg := models.DefaultMatchConfig() // tolerance 0.01 absolute

	base := record("2024-03-15", 100.00, "Coffee Shop")

	// Within the absolute tolerance: full amount score.
	within := record("2024-03-15", 100.01, "Coffee Shop")
	got := CalculateConfidence(base, within, cfg, nil)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0 for amount within tolerance, got %f", got)
	}

	// One cent past the tolerance: amount contributes nothing.
	outside := record("2024-03-15", 100.02, "Coffee Shop")
	got = CalculateConfidence(base, outside, cfg, nil)
	if !almostEqual(got, 0.7) {
		t.Errorf("expected 0.7 for amount outside tolerance, got %f", got)
	}
}

func TestCalculateConfidenceMissingFields(t *testing.T) {
	cfg := models.DefaultMatchConfig()

	full := record("2024-03-15", 100.00, "Coffee Shop")
	noDate := &models.NormalizedRecord{
		Amount:      full.Amount,
		Description: "Coffee Shop",
	}
	noAmount := &models.NormalizedRecord{
		Date:        full.Date,
		Description: "Coffee Shop",
	}
	empty := &models.NormalizedRecord{}

	if got := CalculateConfidence(full, noDate, cfg, nil); !almostEqual(got, 0.7) {
		t.Errorf("missing date should zero the date dimension: got %f, expected 0.7", got)
	}
	if got := CalculateConfidence(full, noAmount, cfg, nil); !almostEqual(got, 0.7) {
		t.Errorf("missing amount should zero the amount dimension: got %f, expected 0.7", got)
	}
	if got := CalculateConfidence(full, empty, cfg, nil); !almostEqual(got, 0.0) {
		t.Errorf("fully empty record should score 0: got %f", got)
	}
}

func TestCalculateConfidenceSymmetric(t *testing.T) {
	cfg := models.DefaultMatchConfig()

	a := record("2024-03-15", 42.50, "Trader Joe's 552")
	b := record("2024-03-17", 42.55, "TRADER JOES #552 NYC")

	ab := CalculateConfidence(a, b, cfg, nil)
	ba := CalculateConfidence(b, a, cfg, nil)
	if !almostEqual(ab, ba) {
		t.Errorf("confidence not symmetric: %f vs %f", ab, ba)
	}
}

func TestCalculateConfidenceWithResolver(t *testing.T) {
	cfg := models.DefaultMatchConfig()
	resolver := newStubResolver(map[string]string{
		"AMZN Mktp US*2G4": "Amazon",
		"Amazon.com":       "Amazon",
	})

	source := record("2024-03-15", 29.99, "AMZN Mktp US*2G4")
	target := record("2024-03-15", 29.99, "Amazon.com")

	got := CalculateConfidence(source, target, cfg, resolver)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0 when both descriptions resolve to the same primary, got %f", got)
	}
	if resolver.hits != 2 {
		t.Errorf("expected 2 resolver hits, got %d", resolver.hits)
	}

	// Without the resolver the descriptions only partially agree.
	without := CalculateConfidence(source, target, cfg, nil)
	if without >= got {
		t.Errorf("expected resolver to raise the score: %f >= %f", without, got)
	}
}

func TestCalculateConfidenceRounding(t *testing.T) {
	cfg := models.DefaultMatchConfig()

	source := record("2024-03-16", 50.00, "Some Shop")
	target := record("2024-03-15", 50.00, "Some Shop")

	got := CalculateConfidence(source, target, cfg, nil)
	// 0.3 + 0.3*(2/3) + 0.4 = 0.9 exactly after rounding to 4 places.
	if !almostEqual(got, 0.9) {
		t.Errorf("expected rounded confidence 0.9, got %f", got)
	}
	if got != round4(got) {
		t.Errorf("confidence %f not rounded to 4 decimal places", got)
	}
}

func TestFuzzyRatio(t *testing.T) {
	tests := []struct {
		a, b     string
		expected float64
	}{
		{"", "", 1.0},
		{"abc", "abc", 1.0},
		{"abc", "", 0.0},
		{"abcd", "abcx", 0.75},
	}

	for _, tt := range tests {
		if got := fuzzyRatio(tt.a, tt.b); !almostEqual(got, tt.expected) {
			t.Errorf("fuzzyRatio(%q, %q) = %f, expected %f", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestCalculateReason(t *testing.T) {
	source := record("2024-03-15", -15.99, "NETFLIX.COM")
	target := record("2024-03-15", -15.99, "NETFLIX.COM")

	reason := CalculateReason(source, target)
	for _, want := range []string{"exact amount", "same date", "nearly identical description"} {
		if !strings.Contains(reason, want) {
			t.Errorf("expected reason to contain %q, got %q", want, reason)
		}
	}

	source = record("2024-03-15", 100.00, "StarBucks Store #443")
	target = record("2024-03-17", 101.00, "Parking Garage LLC")

	reason = CalculateReason(source, target)
	for _, want := range []string{"different amount", "2 days apart", "different description"} {
		if !strings.Contains(reason, want) {
			t.Errorf("expected reason to contain %q, got %q", want, reason)
		}
	}
}

func TestCalculateReasonIgnoresCase(t *testing.T) {
	// Case differences vanish during canonicalization, so a pair the scorer
	// rates 1.0 must not be described as different.
	source := record("2024-03-15", -15.99, "NETFLIX.COM")
	target := record("2024-03-15", -15.99, "Netflix.com")

	cfg := models.DefaultMatchConfig()
	if got := CalculateConfidence(source, target, cfg, nil); !almostEqual(got, 1.0) {
		t.Fatalf("expected confidence 1.0, got %f", got)
	}

	reason := CalculateReason(source, target)
	if strings.Contains(reason, "different description") {
		t.Errorf("reason contradicts a perfect score: %q", reason)
	}
	if !strings.Contains(reason, "nearly identical description") {
		t.Errorf("expected nearly identical description, got %q", reason)
	}
}

func TestAbsDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 16, 0, 1, 0, 0, time.UTC)

	// Two minutes apart on the clock, one day apart on the calendar.
	if got := absDaysBetween(a, b); got != 1 {
		t.Errorf("expected 1 calendar day, got %d", got)
	}
	if got := absDaysBetween(b, a); got != 1 {
		t.Errorf("expected symmetric day distance, got %d", got)
	}
	if got := absDaysBetween(a, a); got != 0 {
		t.Errorf("expected 0 days for identical times, got %d", got)
	}
}
