// Package parsers loads bank and ledger CSV exports into normalized
// records. Real exports disagree about everything: column names, date
// formats, how debits are signed, whether debits get their own column. A
// FormatConfig captures those choices per export; the loader degrades
// unparsable cells to missing fields instead of failing the file.
package parsers

import (
	"strings"

	"doublepost/internal/matcher"
)

// FormatConfig describes how one CSV export lays out its columns.
//
// When DebitColumn and CreditColumn are set the export splits outflows and
// inflows into separate columns; the loader folds them into one signed
// amount (debits negative) and the format's sign convention is fixed to
// SignDebitColumn.
//
// Signs, when set, forces that convention; empty means detect it from the
// loaded data.
type FormatConfig struct {
	Name              string                 `json:"name"`
	DateColumn        string                 `json:"date_column"`
	AmountColumn      string                 `json:"amount_column"`
	DescriptionColumn string                 `json:"description_column"`
	DebitColumn       string                 `json:"debit_column,omitempty"`
	CreditColumn      string                 `json:"credit_column,omitempty"`
	DateFormat        string                 `json:"date_format,omitempty"`
	Signs             matcher.SignConvention `json:"signs"`
	ColumnAliases     map[string]string      `json:"column_aliases,omitempty"`
}

// SplitsDebitCredit reports whether the format uses separate debit and
// credit columns instead of one signed amount column.
func (fc *FormatConfig) SplitsDebitCredit() bool {
	return fc.DebitColumn != "" && fc.CreditColumn != ""
}

// Validate checks that the format names the columns the loader needs.
func (fc *FormatConfig) Validate() error {
	if strings.TrimSpace(fc.Name) == "" {
		return errFormat("name")
	}
	if strings.TrimSpace(fc.DateColumn) == "" {
		return errFormat("date_column")
	}
	if strings.TrimSpace(fc.DescriptionColumn) == "" {
		return errFormat("description_column")
	}
	if !fc.SplitsDebitCredit() && strings.TrimSpace(fc.AmountColumn) == "" {
		return errFormat("amount_column")
	}
	return nil
}

// GetColumnName returns the configured column header for a standard field,
// honoring aliases first.
func (fc *FormatConfig) GetColumnName(standardName string) string {
	if alias, exists := fc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "date":
		return fc.DateColumn
	case "amount":
		return fc.AmountColumn
	case "description":
		return fc.DescriptionColumn
	case "debit":
		return fc.DebitColumn
	case "credit":
		return fc.CreditColumn
	default:
		return standardName
	}
}

// GenericFormat is the default single-amount-column layout. The sign
// convention is left unset and detected from the data.
func GenericFormat() *FormatConfig {
	return &FormatConfig{
		Name:              "generic",
		DateColumn:        "date",
		AmountColumn:      "amount",
		DescriptionColumn: "description",
	}
}

// DebitCreditFormat is the split-column layout used by several large banks:
// outflows in a debit column, inflows in a credit column, both positive.
func DebitCreditFormat() *FormatConfig {
	return &FormatConfig{
		Name:              "debit_credit",
		DateColumn:        "date",
		DescriptionColumn: "description",
		DebitColumn:       "debit",
		CreditColumn:      "credit",
		Signs:             matcher.SignDebitColumn,
	}
}

// BuiltinFormat looks up a named built-in format.
func BuiltinFormat(name string) (*FormatConfig, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return GenericFormat(), true
	case "debit_credit":
		return DebitCreditFormat(), true
	default:
		return nil, false
	}
}

// DetectFormat inspects a header row and picks the built-in format that
// fits: split debit/credit columns when both are present, generic
// otherwise.
func DetectFormat(header []string) *FormatConfig {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[strings.ToLower(strings.TrimSpace(h))] = true
	}

	if seen["debit"] && seen["credit"] {
		return DebitCreditFormat()
	}
	return GenericFormat()
}
