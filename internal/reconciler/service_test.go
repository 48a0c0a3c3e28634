package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"doublepost/internal/models"
	"doublepost/pkg/errors"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func runTestReconciliation(t *testing.T) *Result {
	t.Helper()

	sourceFile := writeTempCSV(t, "bank.csv", `date,amount,description
2024-03-15,-15.99,NETFLIX.COM
2024-03-16,-42.80,Simply Noodles 00-08 New York
2024-03-17,-250.00,Rent Payment March
`)
	targetFile := writeTempCSV(t, "ledger.csv", `date,amount,description
2024-03-15,-15.99,Netflix.com
2024-03-16,-42.80,Simply Noodles 267 Amsterdam Ave
2024-03-20,-8.50,Coffee Cart
`)

	service, err := NewService(nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	result, err := service.Reconcile(context.Background(), &Request{
		SourceFile: sourceFile,
		TargetFile: targetFile,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	return result
}

func TestReconcile(t *testing.T) {
	result := runTestReconciliation(t)

	if result.RunID == "" {
		t.Error("expected a run ID")
	}
	if result.ProcessedAt.IsZero() {
		t.Error("expected a processing timestamp")
	}

	if result.Summary.SourceRecords != 3 || result.Summary.TargetRecords != 3 {
		t.Errorf("unexpected record counts: %+v", result.Summary)
	}
	if result.Summary.Matched != 2 {
		t.Errorf("expected 2 matches, got %d", result.Summary.Matched)
	}
	if result.Summary.MissingInTarget != 1 || result.Summary.MissingInSource != 1 {
		t.Errorf("unexpected missing counts: %+v", result.Summary)
	}
	if result.Summary.ByTier[models.TierHigh] != 2 {
		t.Errorf("expected both matches in the high tier, got %v", result.Summary.ByTier)
	}

	wantRate := 2.0 / 3.0
	if diff := result.Summary.MatchRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected match rate %f, got %f", wantRate, result.Summary.MatchRate)
	}

	if err := result.MatchResult.Validate(len(result.Source), len(result.Target)); err != nil {
		t.Errorf("result violates invariants: %v", err)
	}
}

func TestReconcileSignNormalization(t *testing.T) {
	// Bank signs debits negative; the ledger records them positive. The
	// run must still line the records up.
	sourceFile := writeTempCSV(t, "bank.csv", `date,amount,description
2024-03-15,-15.99,NETFLIX.COM
`)
	targetFile := writeTempCSV(t, "ledger.csv", `date,amount,description
2024-03-15,15.99,Netflix.com
`)

	service, _ := NewService(nil, nil)
	result, err := service.Reconcile(context.Background(), &Request{
		SourceFile: sourceFile,
		TargetFile: targetFile,
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if result.Summary.Matched != 1 {
		t.Fatalf("expected sign normalization to produce a match, got %d", result.Summary.Matched)
	}
	if result.MatchResult.Matches[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 after normalization, got %f", result.MatchResult.Matches[0].Confidence)
	}
}

func TestReconcileMissingFile(t *testing.T) {
	service, _ := NewService(nil, nil)

	_, err := service.Reconcile(context.Background(), &Request{
		SourceFile: filepath.Join(t.TempDir(), "nope.csv"),
		TargetFile: filepath.Join(t.TempDir(), "nope2.csv"),
	})
	if err == nil {
		t.Fatal("expected an error for missing files")
	}

	dpErr, ok := errors.AsDoublePostError(err)
	if !ok || dpErr.Category != errors.CategoryFile {
		t.Errorf("expected a file error, got %v", err)
	}
}

func TestReconcileRequestValidation(t *testing.T) {
	service, _ := NewService(nil, nil)

	if _, err := service.Reconcile(context.Background(), &Request{TargetFile: "x.csv"}); err == nil {
		t.Error("expected missing source file to fail validation")
	}
	if _, err := service.Reconcile(context.Background(), &Request{SourceFile: "x.csv"}); err == nil {
		t.Error("expected missing target file to fail validation")
	}
}

func TestReconcileCancelledContext(t *testing.T) {
	sourceFile := writeTempCSV(t, "bank.csv", "date,amount,description\n2024-03-15,-1.00,A\n")
	targetFile := writeTempCSV(t, "ledger.csv", "date,amount,description\n2024-03-15,-1.00,A\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service, _ := NewService(nil, nil)
	if _, err := service.Reconcile(ctx, &Request{SourceFile: sourceFile, TargetFile: targetFile}); err == nil {
		t.Error("expected a cancelled context to abort the run")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected out-of-range min confidence to fail")
	}

	cfg = DefaultConfig()
	cfg.Matching = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected nil matching config to fail")
	}
}

func TestApplyDecision(t *testing.T) {
	result := runTestReconciliation(t)

	if err := ApplyDecision(result, 0, models.DecisionRejected); err != nil {
		t.Fatalf("ApplyDecision failed: %v", err)
	}
	if result.MatchResult.Matches[0].Decision != models.DecisionRejected {
		t.Error("expected decision to be recorded")
	}

	// Decisions are revisable.
	if err := ApplyDecision(result, 0, models.DecisionAccepted); err != nil {
		t.Fatalf("ApplyDecision failed: %v", err)
	}
	if result.MatchResult.Matches[0].Decision != models.DecisionAccepted {
		t.Error("expected decision to be revised")
	}

	if err := ApplyDecision(result, 99, models.DecisionAccepted); err == nil {
		t.Error("expected out-of-range match index to fail")
	}
	if err := ApplyDecision(result, 0, models.MatchDecision("maybe")); err == nil {
		t.Error("expected invalid decision to fail")
	}
}

func TestMergeManualMatch(t *testing.T) {
	result := runTestReconciliation(t)

	// Pair the leftover source (rent) with the leftover target (coffee).
	sourceIdx := result.MatchResult.MissingInTarget[0]
	targetIdx := result.MatchResult.MissingInSource[0]

	match, err := MergeManualMatch(result, sourceIdx, targetIdx)
	if err != nil {
		t.Fatalf("MergeManualMatch failed: %v", err)
	}
	if !match.Manual {
		t.Error("expected a manual match")
	}
	if match.Decision != models.DecisionPending {
		t.Errorf("expected pending decision, got %s", match.Decision)
	}

	if len(result.MatchResult.MissingInTarget) != 0 || len(result.MatchResult.MissingInSource) != 0 {
		t.Errorf("expected missing sets emptied, got %v / %v",
			result.MatchResult.MissingInTarget, result.MatchResult.MissingInSource)
	}
	if result.Summary.Matched != 3 {
		t.Errorf("expected summary refreshed to 3 matches, got %d", result.Summary.Matched)
	}
	if err := result.MatchResult.Validate(len(result.Source), len(result.Target)); err != nil {
		t.Errorf("result violates invariants after merge: %v", err)
	}
}

func TestMergeManualMatchRejectsDoubleBooking(t *testing.T) {
	result := runTestReconciliation(t)

	claimedSource := result.MatchResult.Matches[0].SourceIdx
	claimedTarget := *result.MatchResult.Matches[0].TargetIdx
	freeTarget := result.MatchResult.MissingInSource[0]
	freeSource := result.MatchResult.MissingInTarget[0]

	if _, err := MergeManualMatch(result, claimedSource, freeTarget); err == nil {
		t.Error("expected re-pairing a claimed source to fail")
	}
	if _, err := MergeManualMatch(result, freeSource, claimedTarget); err == nil {
		t.Error("expected re-pairing a claimed target to fail")
	}

	dpErr, ok := errors.AsDoublePostError(mustErr(t, result, claimedSource, freeTarget))
	if !ok || dpErr.Code != errors.CodeMatchConflict {
		t.Errorf("expected match_conflict error, got %v", dpErr)
	}
}

func mustErr(t *testing.T, result *Result, sourceIdx, targetIdx int) error {
	t.Helper()

	_, err := MergeManualMatch(result, sourceIdx, targetIdx)
	if err == nil {
		t.Fatal("expected an error")
	}
	return err
}
