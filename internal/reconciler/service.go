// Package reconciler orchestrates a full reconciliation run: load both CSV
// exports, normalize sign conventions, run the matching engine, and wrap
// everything in a result the reporter and CLI can consume.
package reconciler

import (
	"context"
	"time"

	"doublepost/internal/matcher"
	"doublepost/internal/models"
	"doublepost/internal/parsers"
	"doublepost/pkg/errors"
	"doublepost/pkg/logger"

	"github.com/google/uuid"
)

// Service runs reconciliations. The alias resolver is optional; without it
// descriptions are compared on their normalized raw form only.
type Service struct {
	config   *Config
	resolver matcher.AliasResolver
	logger   logger.Logger
}

// Config holds the tunables of a reconciliation run.
type Config struct {
	// Matching carries the scoring parameters.
	Matching *models.MatchConfig

	// MinConfidence is the floor below which candidate pairs are dropped
	// entirely rather than reported as weak matches.
	MinConfidence float64

	// UseAliases enables alias resolution during description comparison.
	UseAliases bool
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() *Config {
	return &Config{
		Matching:      models.DefaultMatchConfig(),
		MinConfidence: 0.1,
		UseAliases:    true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Matching == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "matching", nil, nil)
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching", c.Matching.String(), err)
	}
	if c.MinConfidence < 0.0 || c.MinConfidence > 1.0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "min_confidence", c.MinConfidence, nil)
	}
	return nil
}

// Request names the two files of one reconciliation run. Source is the
// authoritative side (the bank export); target is the side being checked
// (the personal ledger).
type Request struct {
	SourceFile   string
	TargetFile   string
	SourceFormat *parsers.FormatConfig
	TargetFormat *parsers.FormatConfig
}

// Validate checks the request.
func (r *Request) Validate() error {
	if r.SourceFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "source_file", "", nil)
	}
	if r.TargetFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "target_file", "", nil)
	}
	return nil
}

// Result is the complete outcome of one run. Source and Target hold the
// loaded records in file order so the index-based match result can be
// rendered back into real rows.
type Result struct {
	RunID       string        `json:"run_id"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`

	Source []*models.NormalizedRecord `json:"-"`
	Target []*models.NormalizedRecord `json:"-"`

	SourceStats *parsers.LoadStats `json:"source_stats"`
	TargetStats *parsers.LoadStats `json:"target_stats"`

	MatchResult *models.MatchResult `json:"match_result"`
	Summary     *Summary            `json:"summary"`
}

// Summary aggregates the run for quick display.
type Summary struct {
	SourceRecords   int `json:"source_records"`
	TargetRecords   int `json:"target_records"`
	Matched         int `json:"matched"`
	MissingInTarget int `json:"missing_in_target"`
	MissingInSource int `json:"missing_in_source"`

	ByTier     map[models.ConfidenceTier]int `json:"by_tier"`
	ByDecision map[models.MatchDecision]int  `json:"by_decision"`

	// MatchRate is matched sources over total sources, 0 when empty.
	MatchRate float64 `json:"match_rate"`
}

// NewService creates a reconciliation service. resolver may be nil.
func NewService(config *Config, resolver matcher.AliasResolver) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		config:   config,
		resolver: resolver,
		logger:   logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Config returns a copy of the service configuration.
func (s *Service) Config() *Config {
	clone := *s.config
	clone.Matching = s.config.Matching.Clone()
	return &clone
}

// Reconcile executes one full run. The context is checked between the load
// and match phases so a cancelled CLI invocation stops promptly.
func (s *Service) Reconcile(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	start := time.Now()
	log := s.logger.WithField("run_id", runID)

	log.WithFields(logger.Fields{
		"source": req.SourceFile,
		"target": req.TargetFile,
	}).Info("starting reconciliation")

	source, sourceStats, err := s.loadFile(req.SourceFile, req.SourceFormat)
	if err != nil {
		return nil, err
	}
	target, targetStats, err := s.loadFile(req.TargetFile, req.TargetFormat)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryMatching, errors.CodeMatchingFailed, "reconciliation cancelled")
	}

	sourceFormat := req.SourceFormat
	if sourceFormat == nil {
		sourceFormat = parsers.GenericFormat()
	}
	targetFormat := req.TargetFormat
	if targetFormat == nil {
		targetFormat = parsers.GenericFormat()
	}

	sourceSigns := parsers.DetectSignConvention(source, sourceFormat)
	targetSigns := parsers.DetectSignConvention(target, targetFormat)
	normalizedTarget := matcher.NormalizeSignConventions(target, sourceSigns, targetSigns)
	if len(normalizedTarget) > 0 && normalizedTarget[0] != target[0] {
		log.WithFields(logger.Fields{
			"source_signs": sourceSigns,
			"target_signs": targetSigns,
		}).Info("normalized target sign convention")
	}

	var resolver matcher.AliasResolver
	if s.config.UseAliases {
		resolver = s.resolver
	}

	matchResult := matcher.FindMatches(source, normalizedTarget, s.config.Matching, s.config.MinConfidence, resolver)

	if err := matchResult.Validate(len(source), len(normalizedTarget)); err != nil {
		return nil, errors.MatchingError(errors.CodeMatchingFailed, "result validation", err)
	}

	result := &Result{
		RunID:       runID,
		ProcessedAt: start,
		Duration:    time.Since(start),
		Source:      source,
		Target:      normalizedTarget,
		SourceStats: sourceStats,
		TargetStats: targetStats,
		MatchResult: matchResult,
	}
	result.Summary = buildSummary(result)

	log.WithFields(logger.Fields{
		"matched":           result.Summary.Matched,
		"missing_in_target": result.Summary.MissingInTarget,
		"missing_in_source": result.Summary.MissingInSource,
		"duration":          result.Duration.String(),
	}).Info("reconciliation complete")

	return result, nil
}

func (s *Service) loadFile(path string, format *parsers.FormatConfig) ([]*models.NormalizedRecord, *parsers.LoadStats, error) {
	loader, err := parsers.NewLoader(format)
	if err != nil {
		return nil, nil, err
	}
	return loader.Load(path)
}

func buildSummary(result *Result) *Summary {
	summary := &Summary{
		SourceRecords:   len(result.Source),
		TargetRecords:   len(result.Target),
		Matched:         len(result.MatchResult.Matches),
		MissingInTarget: len(result.MatchResult.MissingInTarget),
		MissingInSource: len(result.MatchResult.MissingInSource),
		ByTier:          make(map[models.ConfidenceTier]int),
		ByDecision:      make(map[models.MatchDecision]int),
	}

	for _, m := range result.MatchResult.Matches {
		summary.ByTier[m.Tier]++
		summary.ByDecision[m.Decision]++
	}

	if summary.SourceRecords > 0 {
		summary.MatchRate = float64(summary.Matched) / float64(summary.SourceRecords)
	}

	return summary
}
