package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"doublepost/internal/models"
	"doublepost/internal/reconciler"

	"github.com/shopspring/decimal"
)

func testResult() *reconciler.Result {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-15.99)
	rent := decimal.NewFromFloat(-250.00)
	coffee := decimal.NewFromFloat(-8.50)

	source := []*models.NormalizedRecord{
		{Date: &date, Amount: &amount, Description: "NETFLIX.COM"},
		{Date: &date, Amount: &rent, Description: "Rent Payment"},
	}
	target := []*models.NormalizedRecord{
		{Date: &date, Amount: &amount, Description: "Netflix.com"},
		{Date: &date, Amount: &coffee, Description: "Coffee Cart"},
	}

	targetIdx := 0
	result := &reconciler.Result{
		RunID:       "test-run",
		ProcessedAt: date,
		Duration:    42 * time.Millisecond,
		Source:      source,
		Target:      target,
		MatchResult: &models.MatchResult{
			Matches: []*models.Match{
				{
					SourceIdx:  0,
					TargetIdx:  &targetIdx,
					Confidence: 1.0,
					Reason:     "exact amount, same date, nearly identical description",
					Tier:       models.TierHigh,
					Decision:   models.DecisionAccepted,
				},
			},
			MissingInTarget: []int{1},
			MissingInSource: []int{1},
		},
	}
	result.Summary = &reconciler.Summary{
		SourceRecords:   2,
		TargetRecords:   2,
		Matched:         1,
		MissingInTarget: 1,
		MissingInSource: 1,
		ByTier:          map[models.ConfidenceTier]int{models.TierHigh: 1},
		ByDecision:      map[models.MatchDecision]int{models.DecisionAccepted: 1},
		MatchRate:       0.5,
	}
	return result
}

func TestGenerateConsole(t *testing.T) {
	gen, err := NewGenerator(DefaultReportConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gen.Generate(testResult(), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"test-run",
		"Matched:           1 (50.0%)",
		"NETFLIX.COM",
		"missing in target",
		"Rent Payment",
		"Coffee Cart",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateJSON(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatJSON
	gen, _ := NewGenerator(cfg)

	var buf bytes.Buffer
	if err := gen.Generate(testResult(), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var report map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("JSON report not parseable: %v", err)
	}

	if report["run_id"] != "test-run" {
		t.Errorf("unexpected run_id: %v", report["run_id"])
	}
	matches, ok := report["matches"].([]interface{})
	if !ok || len(matches) != 1 {
		t.Fatalf("expected 1 match in JSON report, got %v", report["matches"])
	}
	missing, ok := report["missing_in_target"].([]interface{})
	if !ok || len(missing) != 1 {
		t.Errorf("expected 1 missing-in-target record, got %v", report["missing_in_target"])
	}
}

func TestGenerateCSV(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatCSV
	gen, _ := NewGenerator(cfg)

	var buf bytes.Buffer
	if err := gen.Generate(testResult(), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV report not parseable: %v", err)
	}

	// Header, one match, one missing on each side.
	if len(rows) != 4 {
		t.Fatalf("expected 4 CSV rows, got %d", len(rows))
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			t.Errorf("row %d has %d cells, expected %d", i, len(row), width)
		}
	}

	if rows[1][0] != "match" {
		t.Errorf("expected first data row to be a match, got %q", rows[1][0])
	}
	if rows[2][0] != "missing_in_target" || rows[3][0] != "missing_in_source" {
		t.Errorf("unexpected row types: %q, %q", rows[2][0], rows[3][0])
	}
	if rows[1][7] != "1.0000" {
		t.Errorf("expected confidence cell 1.0000, got %q", rows[1][7])
	}
}

func TestGenerateExcludesSections(t *testing.T) {
	cfg := &ReportConfig{Format: FormatJSON}
	gen, _ := NewGenerator(cfg)

	var buf bytes.Buffer
	if err := gen.Generate(testResult(), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var report map[string]interface{}
	json.Unmarshal(buf.Bytes(), &report)

	if _, present := report["matches"]; present {
		t.Error("expected matches omitted when IncludeMatches is false")
	}
	if _, present := report["missing_in_target"]; present {
		t.Error("expected unmatched records omitted when IncludeUnmatched is false")
	}
}

func TestReportConfigValidate(t *testing.T) {
	cfg := &ReportConfig{Format: "yaml"}
	if _, err := NewGenerator(cfg); err == nil {
		t.Error("expected unsupported format to fail")
	}
}
