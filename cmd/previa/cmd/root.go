package cmd

import (
	"fmt"
	"strings"

	"previa-reconciliation-service/cmd/previa/config"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	configErr error
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "previa",
	Short: "Receipt to transaction match scoring",
	Long: `Previa scores how likely an uploaded receipt documents a bank transaction,
ranks candidate receipts, proposes one-to-one matches over whole exports and
checks subscription tier limits.

Inputs are CSV exports of the transactions and receipts tables.

Examples:
  previa suggest --transactions transactions.csv --receipts receipts.csv
  previa rank -t transactions.csv -r receipts.csv --transaction tx-42
  previa score -t transactions.csv -r receipts.csv --transaction tx-42 --receipt r-7
  previa limits --tier user --receipt-count 45
  previa --version`,
	Version:           getVersionString(),
	PersistentPreRunE: setupLogging,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.StringVar(&cfgFile, "config", "", "config file (optional; YAML, TOML or JSON)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")

	// Input flags
	flags.StringP("transactions", "t", "", "path to the transactions CSV export")
	flags.StringP("receipts", "r", "", "path to the receipts CSV export")

	// Output flags
	flags.StringP("output-format", "f", "console", "output format: console, json, csv")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")

	// Matching configuration flags
	flags.String("preset", "default", "matching preset: default, strict, relaxed")
	flags.Int("max-days", 3, "widest date gap in days that still earns date credit")
	flags.String("max-amount", "0.50", "widest amount gap that still earns amount credit")
	flags.Float64("suggest-threshold", 0.70, "minimum confidence (0-1) for a suggestion")
	flags.Int("workers", 4, "number of pairs scored concurrently")

	// Bind flags to viper
	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
	viper.BindPFlag("transactions", flags.Lookup("transactions"))
	viper.BindPFlag("receipts", flags.Lookup("receipts"))
	viper.BindPFlag("output-format", flags.Lookup("output-format"))
	viper.BindPFlag("output-file", flags.Lookup("output-file"))
	viper.BindPFlag("matching.preset", flags.Lookup("preset"))
	viper.BindPFlag("matching.max_date_difference_days", flags.Lookup("max-days"))
	viper.BindPFlag("matching.max_amount_difference", flags.Lookup("max-amount"))
	viper.BindPFlag("matching.thresholds.suggest_threshold", flags.Lookup("suggest-threshold"))
	viper.BindPFlag("matching.workers", flags.Lookup("workers"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	viper.SetEnvPrefix("PREVIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		configErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
			WithSuggestion("check the config file path and syntax")
	}
}

// setupLogging installs the global logger once flags and config are known
func setupLogging(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	logConfig, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", string(logConfig.Level), err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
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
