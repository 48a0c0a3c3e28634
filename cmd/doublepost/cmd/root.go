package cmd

import (
	"fmt"
	"os"

	"doublepost/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doublepost",
	Short: "Transaction reconciliation for personal finance exports",
	Long: `Double Post reconciles a bank CSV export against a personal ledger
export: it finds the transactions that appear in both, scores how confident
each pairing is, and lists what is missing on either side.

Merchant aliases ("AMZN Mktp US*2G4" -> "Amazon") are stored in a local
SQLite database and applied automatically during matching.

Examples:
  doublepost reconcile --source bank.csv --target ledger.csv
  doublepost reconcile -s bank.csv -t ledger.csv --output-format json -o report.json
  doublepost aliases add "AMZN Mktp US*2G4" "Amazon"
  doublepost aliases list`,
	Version: getVersionString(),
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("aliases-db", "", "path to the alias database (default: ~/.doublepost/aliases.db)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("aliases-db", rootCmd.PersistentFlags().Lookup("aliases-db"))
}

// initConfig reads the config file and environment, then tunes the logger.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("DOUBLEPOST")
	viper.AutomaticEnv()

	logConfig := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		logConfig.Level = logger.DebugLevel
	}
	if log, err := logger.NewLogger(logConfig); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
