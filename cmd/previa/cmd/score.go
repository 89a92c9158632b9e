package cmd

import (
	"context"
	"fmt"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the score command
var (
	scoreTransactionID string
	scoreReceiptID     string
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single transaction and receipt pair",
	Long: `Score computes the confidence, level and sub-scores of one pair, whether or
not it reaches the suggestion threshold.

Example:
  previa score -t transactions.csv -r receipts.csv --transaction tx-42 --receipt r-7`,

	PreRunE: validateScoreFlags,
	RunE:    runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreTransactionID, "transaction", "", "transaction ID (required)")
	scoreCmd.Flags().StringVar(&scoreReceiptID, "receipt", "", "receipt ID (required)")
}

func validateScoreFlags(cmd *cobra.Command, args []string) error {
	if scoreTransactionID == "" || scoreReceiptID == "" {
		return errors.ValidationError(errors.CodeMissingField, "transaction/receipt", "",
			fmt.Errorf("both --transaction and --receipt are required"))
	}
	if err := validateInputFiles(); err != nil {
		return err
	}
	return validateOutputFile(viper.GetString("output-file"))
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.WithComponent("cli").WithField("command", "score")

	ranker, err := newRanker(log)
	if err != nil {
		return err
	}
	generator, err := newReportGenerator(false, 0)
	if err != nil {
		return err
	}

	transactions, receipts, err := loadInputs(ctx, log)
	if err != nil {
		return err
	}

	tx, err := findTransaction(transactions, scoreTransactionID)
	if err != nil {
		return err
	}
	receipt, err := findReceipt(receipts, scoreReceiptID)
	if err != nil {
		return err
	}

	scorer := ranker.Scorer()
	suggestion := scorer.ScoreMatch(tx, receipt)

	title := fmt.Sprintf("Score for %s and %s", tx.ID, receipt.ID)
	if scorer.AutoApprovable(suggestion) {
		title += " (auto-approvable)"
	}

	log.WithFields(logger.Fields{
		"transaction_id": tx.ID,
		"receipt_id":     receipt.ID,
		"confidence":     suggestion.ConfidenceScore,
		"level":          suggestion.ConfidenceLevel,
	}).Debug("Scored pair")

	output, closeOutput, err := openOutput(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.WriteSuggestionReport(title, []*models.MatchSuggestion{suggestion}, output)
}
