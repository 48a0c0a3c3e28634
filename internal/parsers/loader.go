package parsers

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"doublepost/internal/matcher"
	"doublepost/internal/models"
	"doublepost/pkg/errors"
	"doublepost/pkg/logger"

	"github.com/shopspring/decimal"
)

func errFormat(field string) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, "format."+field, "", nil)
}

// LoadStats summarizes one file load.
type LoadStats struct {
	File           string `json:"file"`
	TotalRows      int    `json:"total_rows"`
	ParsedRows     int    `json:"parsed_rows"`
	DegradedRows   int    `json:"degraded_rows"`
	MissingDates   int    `json:"missing_dates"`
	MissingAmounts int    `json:"missing_amounts"`
}

// Loader reads one CSV export into normalized records.
type Loader struct {
	format *FormatConfig
	logger logger.Logger
}

// NewLoader creates a loader for the given format.
func NewLoader(format *FormatConfig) (*Loader, error) {
	if format == nil {
		format = GenericFormat()
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	return &Loader{
		format: format,
		logger: logger.GetGlobalLogger().WithComponent("csv_loader").WithField("format", format.Name),
	}, nil
}

// Format returns the loader's format configuration.
func (l *Loader) Format() *FormatConfig {
	return l.format
}

// Load reads the CSV file at path. Record order follows file order, so the
// returned slice positions are the indices the matcher reports.
//
// Cell-level problems degrade rather than fail: an unparsable date or
// amount becomes a missing field on that record and is counted in the
// stats. Only file-level problems (unreadable file, missing columns,
// malformed CSV structure) return an error.
func (l *Loader) Load(path string) ([]*models.NormalizedRecord, *LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", "", nil).
			WithSuggestion("the file is empty")
	}
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, path, 1, "", "", err)
	}

	columns, err := l.resolveColumns(path, header)
	if err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path}
	var records []*models.NormalizedRecord

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, errors.ParseError(errors.CodeInvalidFormat, path, line, "", "", err)
		}

		if isEmptyRow(row) {
			continue
		}
		stats.TotalRows++

		record, degraded := l.parseRow(row, columns, stats)
		if degraded {
			stats.DegradedRows++
			l.logger.WithFields(logger.Fields{
				"file": path,
				"line": line,
			}).Warn("row has unparsable fields, keeping partial record")
		}
		records = append(records, record)
		stats.ParsedRows++
	}

	l.logger.WithFields(logger.Fields{
		"file":     path,
		"rows":     stats.ParsedRows,
		"degraded": stats.DegradedRows,
	}).Info("loaded CSV export")

	return records, stats, nil
}

// columnIndexes holds resolved 0-based header positions; -1 means absent.
type columnIndexes struct {
	date        int
	amount      int
	description int
	debit       int
	credit      int
}

func (l *Loader) resolveColumns(path string, header []string) (*columnIndexes, error) {
	find := func(standardName string) int {
		want := strings.ToLower(strings.TrimSpace(l.format.GetColumnName(standardName)))
		if want == "" {
			return -1
		}
		for i, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == want {
				return i
			}
		}
		return -1
	}

	cols := &columnIndexes{
		date:        find("date"),
		amount:      find("amount"),
		description: find("description"),
		debit:       find("debit"),
		credit:      find("credit"),
	}

	if cols.date < 0 {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.format.GetColumnName("date"), "", nil)
	}
	if cols.description < 0 {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.format.GetColumnName("description"), "", nil)
	}
	if l.format.SplitsDebitCredit() {
		if cols.debit < 0 {
			return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.format.GetColumnName("debit"), "", nil)
		}
		if cols.credit < 0 {
			return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.format.GetColumnName("credit"), "", nil)
		}
	} else if cols.amount < 0 {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.format.GetColumnName("amount"), "", nil)
	}

	return cols, nil
}

// parseRow builds one record, degrading bad cells to missing fields.
func (l *Loader) parseRow(row []string, cols *columnIndexes, stats *LoadStats) (*models.NormalizedRecord, bool) {
	degraded := false
	// Descriptions are delivered lowercase-trimmed; everything downstream
	// compares them case-free.
	record := &models.NormalizedRecord{
		Description: strings.ToLower(strings.TrimSpace(cell(row, cols.description))),
	}

	if date, ok := l.parseDate(cell(row, cols.date)); ok {
		record.Date = &date
	} else {
		stats.MissingDates++
		degraded = true
	}

	if amount, ok := l.parseAmount(row, cols); ok {
		record.Amount = &amount
	} else {
		stats.MissingAmounts++
		degraded = true
	}

	return record, degraded
}

func (l *Loader) parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if l.format.DateFormat != "" {
		t, err := time.Parse(l.format.DateFormat, raw)
		return t, err == nil
	}

	t, err := models.ParseDateWithFormats(raw)
	return t, err == nil
}

func (l *Loader) parseAmount(row []string, cols *columnIndexes) (decimal.Decimal, bool) {
	if !l.format.SplitsDebitCredit() {
		amount, err := models.ParseAmount(cell(row, cols.amount))
		return amount, err == nil
	}

	// Split layout: fold both columns into one signed amount with debits
	// negative. An empty cell means zero; a row with neither cell filled
	// has no amount.
	debitRaw := strings.TrimSpace(cell(row, cols.debit))
	creditRaw := strings.TrimSpace(cell(row, cols.credit))
	if debitRaw == "" && creditRaw == "" {
		return decimal.Zero, false
	}

	total := decimal.Zero
	if debitRaw != "" {
		debit, err := models.ParseAmount(debitRaw)
		if err != nil {
			return decimal.Zero, false
		}
		total = total.Sub(debit.Abs())
	}
	if creditRaw != "" {
		credit, err := models.ParseAmount(creditRaw)
		if err != nil {
			return decimal.Zero, false
		}
		total = total.Add(credit.Abs())
	}

	return total, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// DetectSignConvention infers how an export signs its debits. Formats with
// a dedicated debit column are fixed at parse time, and an explicitly
// configured convention always wins. Otherwise the majority sign decides,
// on the assumption that most rows in a personal export are expenses. Ties
// read as negatively-signed; minority negatives read as refunds in a
// positively-signed export.
func DetectSignConvention(records []*models.NormalizedRecord, format *FormatConfig) matcher.SignConvention {
	if format != nil && format.SplitsDebitCredit() {
		return matcher.SignDebitColumn
	}
	if format != nil && format.Signs != "" {
		return format.Signs
	}

	negatives, positives := 0, 0
	for _, rec := range records {
		if !rec.HasAmount() || rec.Amount.IsZero() {
			continue
		}
		if rec.Amount.IsNegative() {
			negatives++
		} else {
			positives++
		}
	}

	if negatives > 0 && negatives >= positives {
		return matcher.SignNegative
	}
	return matcher.SignPositive
}
