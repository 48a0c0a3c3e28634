// Package config assembles component configurations from CLI flag values.
package config

import (
	"os"
	"path/filepath"

	"doublepost/internal/models"
	"doublepost/internal/parsers"
	"doublepost/internal/reconciler"
	"doublepost/internal/reporter"
	"doublepost/pkg/errors"

	"github.com/shopspring/decimal"
)

// CreateFormatConfig resolves a named CSV format. An empty name means the
// generic single-amount-column layout.
func CreateFormatConfig(name string) (*parsers.FormatConfig, error) {
	format, ok := parsers.BuiltinFormat(name)
	if !ok {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "format", name, nil).
			WithSuggestion("known formats: generic, debit_credit")
	}
	return format, nil
}

// CreateServiceConfig builds the reconciliation config from flag values.
func CreateServiceConfig(threshold float64, dateWindowDays int, amountTolerance, minConfidence float64, useAliases bool) *reconciler.Config {
	matching := models.DefaultMatchConfig()
	matching.Threshold = threshold
	matching.DateWindowDays = dateWindowDays
	matching.AmountTolerance = decimal.NewFromFloat(amountTolerance)

	return &reconciler.Config{
		Matching:      matching,
		MinConfidence: minConfidence,
		UseAliases:    useAliases,
	}
}

// CreateReportConfig builds the report config from flag values.
func CreateReportConfig(format string, includeMatches, includeUnmatched bool) (*reporter.ReportConfig, error) {
	cfg := &reporter.ReportConfig{
		Format:           reporter.OutputFormat(format),
		IncludeMatches:   includeMatches,
		IncludeUnmatched: includeUnmatched,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AliasDBPath resolves the alias database location: the explicit path when
// given, otherwise ~/.doublepost/aliases.db (created on demand).
func AliasDBPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.ConfigurationError(errors.CodeMissingConfig, "aliases-db", "", err).
			WithSuggestion("pass --aliases-db when no home directory is available")
	}

	dir := filepath.Join(home, ".doublepost")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.ConfigurationError(errors.CodeInvalidConfig, "aliases-db", dir, err)
	}

	return filepath.Join(dir, "aliases.db"), nil
}
