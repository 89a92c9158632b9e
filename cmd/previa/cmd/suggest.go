package cmd

import (
	"context"

	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the suggest command
var (
	includeUnmatched bool
	maxItems         int
)

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose one-to-one receipt matches for a whole export",
	Long: `Suggest scores every unreconciled transaction against every completed
receipt and proposes at most one receipt per transaction, and at most one
transaction per receipt, taking the most confident pairs first.

Examples:
  # Console report
  previa suggest --transactions transactions.csv --receipts receipts.csv

  # JSON report written to a file
  previa suggest -t transactions.csv -r receipts.csv -f json -o suggestions.json

  # Tolerate slow settlement and surcharges
  previa suggest -t transactions.csv -r receipts.csv --preset relaxed`,

	PreRunE: validateSuggestFlags,
	RunE:    runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().BoolVar(&includeUnmatched, "include-unmatched", true, "list transactions and receipts left without a suggestion")
	suggestCmd.Flags().IntVar(&maxItems, "max-items", 50, "maximum items per console list (0 for all)")
}

func validateSuggestFlags(cmd *cobra.Command, args []string) error {
	if err := validateInputFiles(); err != nil {
		return err
	}
	return validateOutputFile(viper.GetString("output-file"))
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	log := logger.WithComponent("cli").WithFields(logger.Fields{
		"command": "suggest",
		"run_id":  runID,
	})

	ranker, err := newRanker(log)
	if err != nil {
		return err
	}
	generator, err := newReportGenerator(includeUnmatched, maxItems)
	if err != nil {
		return err
	}

	var result *matcher.BatchResult
	err = logger.TimedOperation("suggest", log, func() error {
		transactions, receipts, err := loadInputs(ctx, log)
		if err != nil {
			return err
		}
		result, err = ranker.Suggest(ctx, transactions, receipts)
		return err
	})
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"suggested":       result.Summary.Suggested,
		"auto_approvable": result.Summary.AutoApprovable,
		"pairs_scored":    result.Summary.PairsScored,
	}).Info("Suggestion pass finished")

	output, closeOutput, err := openOutput(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.WriteBatchReport(result, output)
}
