package cmd

import (
	"context"
	"io"
	"os"

	"doublepost/cmd/doublepost/config"
	"doublepost/internal/aliases"
	"doublepost/internal/matcher"
	"doublepost/internal/reconciler"
	"doublepost/internal/reporter"
	"doublepost/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	sourceFile      string
	targetFile      string
	sourceFormat    string
	targetFormat    string
	outputFormat    string
	outputFile      string
	dateWindow      int
	amountTolerance float64
	minConfidence   float64
	threshold       float64
	noAliases       bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a bank export against a personal ledger",
	Long: `Reconcile compares a bank CSV export (the source) against a personal
ledger export (the target). Pairs are scored on amount, date proximity, and
description similarity; confident pairings are accepted automatically and
the rest are listed for review, together with the records that have no
counterpart at all.

Examples:
  # Basic reconciliation
  doublepost reconcile --source bank.csv --target ledger.csv

  # A bank that splits debits and credits into separate columns
  doublepost reconcile -s bank.csv --source-format debit_credit -t ledger.csv

  # Machine-readable report with looser matching
  doublepost reconcile -s bank.csv -t ledger.csv \
    --output-format json --output-file report.json \
    --date-window 5 --amount-tolerance 0.05

  # Without alias resolution
  doublepost reconcile -s bank.csv -t ledger.csv --no-aliases`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&sourceFile, "source", "s", "", "path to the bank export CSV (required)")
	reconcileCmd.Flags().StringVarP(&targetFile, "target", "t", "", "path to the ledger export CSV (required)")

	reconcileCmd.Flags().StringVar(&sourceFormat, "source-format", "generic", "source CSV format: generic, debit_credit")
	reconcileCmd.Flags().StringVar(&targetFormat, "target-format", "generic", "target CSV format: generic, debit_credit")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	reconcileCmd.Flags().IntVarP(&dateWindow, "date-window", "d", 3, "date proximity window in days")
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.01, "amount tolerance")
	reconcileCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.1, "minimum confidence for a candidate pair")
	reconcileCmd.Flags().Float64Var(&threshold, "threshold", 0.7, "advisory auto-accept threshold")
	reconcileCmd.Flags().BoolVar(&noAliases, "no-aliases", false, "disable merchant alias resolution")

	reconcileCmd.MarkFlagRequired("source")
	reconcileCmd.MarkFlagRequired("target")

	viper.BindPFlag("source", reconcileCmd.Flags().Lookup("source"))
	viper.BindPFlag("target", reconcileCmd.Flags().Lookup("target"))
	viper.BindPFlag("source-format", reconcileCmd.Flags().Lookup("source-format"))
	viper.BindPFlag("target-format", reconcileCmd.Flags().Lookup("target-format"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("date-window", reconcileCmd.Flags().Lookup("date-window"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("min-confidence", reconcileCmd.Flags().Lookup("min-confidence"))
	viper.BindPFlag("threshold", reconcileCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("no-aliases", reconcileCmd.Flags().Lookup("no-aliases"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values allow overrides from the config file and environment.
	sourceFile = viper.GetString("source")
	targetFile = viper.GetString("target")
	sourceFormat = viper.GetString("source-format")
	targetFormat = viper.GetString("target-format")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	dateWindow = viper.GetInt("date-window")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	minConfidence = viper.GetFloat64("min-confidence")
	threshold = viper.GetFloat64("threshold")
	noAliases = viper.GetBool("no-aliases")

	if sourceFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "source", "", nil)
	}
	if targetFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "target", "", nil)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	srcFormat, err := config.CreateFormatConfig(sourceFormat)
	if err != nil {
		return err
	}
	tgtFormat, err := config.CreateFormatConfig(targetFormat)
	if err != nil {
		return err
	}

	serviceConfig := config.CreateServiceConfig(threshold, dateWindow, amountTolerance, minConfidence, !noAliases)

	var resolver matcher.AliasResolver
	if !noAliases {
		dbPath, err := config.AliasDBPath(viper.GetString("aliases-db"))
		if err != nil {
			return err
		}
		store, err := aliases.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		resolver = store
	}

	service, err := reconciler.NewService(serviceConfig, resolver)
	if err != nil {
		return err
	}

	result, err := service.Reconcile(context.Background(), &reconciler.Request{
		SourceFile:   sourceFile,
		TargetFile:   targetFile,
		SourceFormat: srcFormat,
		TargetFormat: tgtFormat,
	})
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, true, true)
	if err != nil {
		return err
	}
	generator, err := reporter.NewGenerator(reportConfig)
	if err != nil {
		return err
	}

	writer, closeWriter, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeWriter()

	return generator.Generate(result, writer)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	return file, func() { file.Close() }, nil
}
