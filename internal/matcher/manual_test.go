package matcher

import (
	"strings"
	"testing"

	"doublepost/internal/models"
	"doublepost/pkg/errors"
)

func TestCreateManualMatch(t *testing.T) {
	source, target := createTestRecordSets()

	match, err := CreateManualMatch(source, target, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if match.SourceIdx != 0 || *match.TargetIdx != 0 {
		t.Errorf("expected match (0, 0), got (%d, %d)", match.SourceIdx, *match.TargetIdx)
	}
	if !match.Manual {
		t.Error("expected manual flag to be set")
	}
	if !strings.HasPrefix(match.Reason, "Manual match: ") {
		t.Errorf("expected reason to start with 'Manual match: ', got %q", match.Reason)
	}
	if match.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 for identical records, got %f", match.Confidence)
	}
}

func TestCreateManualMatchAlwaysPending(t *testing.T) {
	source, target := createTestRecordSets()

	// Even a perfect-confidence manual pairing stays pending; the user
	// confirms it explicitly.
	match, err := CreateManualMatch(source, target, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.Tier != models.TierHigh {
		t.Errorf("expected high tier, got %s", match.Tier)
	}
	if match.Decision != models.DecisionPending {
		t.Errorf("manual matches must start pending, got %s", match.Decision)
	}
}

func TestCreateManualMatchSkipsHeuristic(t *testing.T) {
	// A pair the engine would boost to 0.90 via the first-two-words
	// heuristic. Manual matching reports the plain score instead.
	source := []*models.NormalizedRecord{
		record("2024-03-16", -42.80, "Simply Noodles 00-08 New York"),
	}
	target := []*models.NormalizedRecord{
		record("2024-03-19", -42.80, "Simply Noodles 267 Amsterdam Ave"),
	}

	match, err := CreateManualMatch(source, target, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.Confidence >= IntelligentMatchConfidence {
		t.Errorf("manual match must not apply the heuristic boost, got %f", match.Confidence)
	}
}

func TestCreateManualMatchOutOfRange(t *testing.T) {
	source, target := createTestRecordSets()

	tests := []struct {
		name      string
		sourceIdx int
		targetIdx int
	}{
		{"negative source", -1, 0},
		{"source past end", len(source), 0},
		{"negative target", 0, -1},
		{"target past end", 0, len(target)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateManualMatch(source, target, tt.sourceIdx, tt.targetIdx)
			if err == nil {
				t.Fatal("expected an out-of-range error")
			}

			dpErr, ok := errors.AsDoublePostError(err)
			if !ok {
				t.Fatalf("expected a DoublePostError, got %T", err)
			}
			if dpErr.Category != errors.CategoryValidation {
				t.Errorf("expected validation category, got %s", dpErr.Category)
			}
			if dpErr.Code != errors.CodeOutOfRange {
				t.Errorf("expected out_of_range code, got %s", dpErr.Code)
			}
		})
	}
}

func TestCreateManualMatchEmptySets(t *testing.T) {
	if _, err := CreateManualMatch(nil, nil, 0, 0); err == nil {
		t.Error("expected an error for empty record sets")
	}
}
