// Package reporter renders reconciliation results for people (console) and
// machines (JSON, CSV).
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"doublepost/internal/models"
	"doublepost/internal/reconciler"
	"doublepost/pkg/errors"
	"doublepost/pkg/logger"
)

// OutputFormat selects how a result is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// ReportConfig controls report content.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeMatches lists every match, not just the summary.
	IncludeMatches bool `json:"include_matches"`

	// IncludeUnmatched lists the records left without a counterpart.
	IncludeUnmatched bool `json:"include_unmatched"`
}

// DefaultReportConfig renders everything to the console.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeMatches:   true,
		IncludeUnmatched: true,
	}
}

// Validate checks the configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "format", string(c.Format), nil)
	}
	return nil
}

// Generator renders results in the configured format.
type Generator struct {
	config *ReportConfig
	logger logger.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(config *ReportConfig) (*Generator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// Generate writes the report for result to writer.
func (g *Generator) Generate(result *reconciler.Result, writer io.Writer) error {
	switch g.config.Format {
	case FormatJSON:
		return g.generateJSON(result, writer)
	case FormatCSV:
		return g.generateCSV(result, writer)
	default:
		return g.generateConsole(result, writer)
	}
}

// matchRow is one rendered match with both records inlined.
type matchRow struct {
	SourceIdx  int                      `json:"source_idx"`
	Source     *models.NormalizedRecord `json:"source"`
	TargetIdx  *int                     `json:"target_idx,omitempty"`
	Target     *models.NormalizedRecord `json:"target,omitempty"`
	Confidence float64                  `json:"confidence"`
	Tier       models.ConfidenceTier    `json:"tier"`
	Decision   models.MatchDecision     `json:"decision"`
	Manual     bool                     `json:"manual"`
	Reason     string                   `json:"reason"`
}

// jsonReport is the machine-readable report shape.
type jsonReport struct {
	RunID           string                     `json:"run_id"`
	ProcessedAt     string                     `json:"processed_at"`
	DurationMs      int64                      `json:"duration_ms"`
	Summary         *reconciler.Summary        `json:"summary"`
	Matches         []*matchRow                `json:"matches,omitempty"`
	MissingInTarget []*models.NormalizedRecord `json:"missing_in_target,omitempty"`
	MissingInSource []*models.NormalizedRecord `json:"missing_in_source,omitempty"`
}

func (g *Generator) buildRows(result *reconciler.Result) []*matchRow {
	rows := make([]*matchRow, 0, len(result.MatchResult.Matches))
	for _, m := range result.MatchResult.Matches {
		row := &matchRow{
			SourceIdx:  m.SourceIdx,
			Source:     result.Source[m.SourceIdx],
			Confidence: m.Confidence,
			Tier:       m.Tier,
			Decision:   m.Decision,
			Manual:     m.Manual,
			Reason:     m.Reason,
		}
		if m.TargetIdx != nil {
			row.TargetIdx = m.TargetIdx
			row.Target = result.Target[*m.TargetIdx]
		}
		rows = append(rows, row)
	}
	return rows
}

func (g *Generator) generateJSON(result *reconciler.Result, writer io.Writer) error {
	report := &jsonReport{
		RunID:       result.RunID,
		ProcessedAt: result.ProcessedAt.Format("2006-01-02T15:04:05Z07:00"),
		DurationMs:  result.Duration.Milliseconds(),
		Summary:     result.Summary,
	}

	if g.config.IncludeMatches {
		report.Matches = g.buildRows(result)
	}
	if g.config.IncludeUnmatched {
		for _, idx := range result.MatchResult.MissingInTarget {
			report.MissingInTarget = append(report.MissingInTarget, result.Source[idx])
		}
		for _, idx := range result.MatchResult.MissingInSource {
			report.MissingInSource = append(report.MissingInSource, result.Target[idx])
		}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (g *Generator) generateCSV(result *reconciler.Result, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"row_type", "source_date", "source_amount", "source_description",
		"target_date", "target_amount", "target_description",
		"confidence", "tier", "decision", "manual", "reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	if g.config.IncludeMatches {
		for _, row := range g.buildRows(result) {
			record := append([]string{"match"}, recordCells(row.Source)...)
			record = append(record, recordCells(row.Target)...)
			record = append(record,
				strconv.FormatFloat(row.Confidence, 'f', 4, 64),
				string(row.Tier),
				string(row.Decision),
				strconv.FormatBool(row.Manual),
				row.Reason,
			)
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	if g.config.IncludeUnmatched {
		for _, idx := range result.MatchResult.MissingInTarget {
			record := append([]string{"missing_in_target"}, recordCells(result.Source[idx])...)
			record = append(record, "", "", "", "", "", "", "", "")
			if err := w.Write(record); err != nil {
				return err
			}
		}
		for _, idx := range result.MatchResult.MissingInSource {
			record := append([]string{"missing_in_source"}, "", "", "")
			record = append(record, recordCells(result.Target[idx])...)
			record = append(record, "", "", "", "", "")
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	return w.Error()
}

// recordCells renders a record as date, amount, description cells.
func recordCells(rec *models.NormalizedRecord) []string {
	if rec == nil {
		return []string{"", "", ""}
	}

	date := ""
	if rec.Date != nil {
		date = rec.Date.Format("2006-01-02")
	}
	amount := ""
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	return []string{date, amount, rec.Description}
}

func (g *Generator) generateConsole(result *reconciler.Result, writer io.Writer) error {
	s := result.Summary

	fmt.Fprintf(writer, "Reconciliation %s\n", result.RunID)
	fmt.Fprintf(writer, "%s\n\n", strings.Repeat("=", 60))

	fmt.Fprintf(writer, "Source records:    %d\n", s.SourceRecords)
	fmt.Fprintf(writer, "Target records:    %d\n", s.TargetRecords)
	fmt.Fprintf(writer, "Matched:           %d (%.1f%%)\n", s.Matched, s.MatchRate*100)
	fmt.Fprintf(writer, "Missing in target: %d\n", s.MissingInTarget)
	fmt.Fprintf(writer, "Missing in source: %d\n", s.MissingInSource)
	fmt.Fprintf(writer, "Duration:          %s\n", result.Duration)

	if len(s.ByTier) > 0 {
		fmt.Fprintf(writer, "\nBy confidence tier:\n")
		for _, tier := range []models.ConfidenceTier{models.TierHigh, models.TierMedium, models.TierLow} {
			if count := s.ByTier[tier]; count > 0 {
				fmt.Fprintf(writer, "  %-8s %d\n", tier, count)
			}
		}
	}

	if g.config.IncludeMatches && len(result.MatchResult.Matches) > 0 {
		fmt.Fprintf(writer, "\nMatches\n%s\n", strings.Repeat("-", 60))
		for _, row := range g.buildRows(result) {
			marker := " "
			if row.Manual {
				marker = "M"
			}
			fmt.Fprintf(writer, "%s [%.4f %-6s %-8s] %s  <->  %s\n",
				marker, row.Confidence, row.Tier, row.Decision,
				recordLine(row.Source), recordLine(row.Target))
			fmt.Fprintf(writer, "    %s\n", row.Reason)
		}
	}

	if g.config.IncludeUnmatched {
		if len(result.MatchResult.MissingInTarget) > 0 {
			fmt.Fprintf(writer, "\nIn source only (missing in target)\n%s\n", strings.Repeat("-", 60))
			for _, idx := range result.MatchResult.MissingInTarget {
				fmt.Fprintf(writer, "  [%d] %s\n", idx, recordLine(result.Source[idx]))
			}
		}
		if len(result.MatchResult.MissingInSource) > 0 {
			fmt.Fprintf(writer, "\nIn target only (missing in source)\n%s\n", strings.Repeat("-", 60))
			for _, idx := range result.MatchResult.MissingInSource {
				fmt.Fprintf(writer, "  [%d] %s\n", idx, recordLine(result.Target[idx]))
			}
		}
	}

	return nil
}

// recordLine renders a record on one console line.
func recordLine(rec *models.NormalizedRecord) string {
	if rec == nil {
		return "(none)"
	}

	cells := recordCells(rec)
	for i, c := range cells {
		if c == "" {
			cells[i] = "?"
		}
	}
	return fmt.Sprintf("%s %10s  %s", cells[0], cells[1], cells[2])
}
