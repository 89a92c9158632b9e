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

// Flags for the rank command
var (
	rankTransactionID string
	rankReceiptID     string
	rankBestOnly      bool
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidate receipts for a transaction, or transactions for a receipt",
	Long: `Rank scores one record against every record of the other export and lists
the candidates that reach the suggestion threshold, most confident first.

Examples:
  # Receipts that may document transaction tx-42
  previa rank -t transactions.csv -r receipts.csv --transaction tx-42

  # Transactions that receipt r-7 may document
  previa rank -t transactions.csv -r receipts.csv --receipt r-7

  # Only the top candidate
  previa rank -t transactions.csv -r receipts.csv --transaction tx-42 --best`,

	PreRunE: validateRankFlags,
	RunE:    runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&rankTransactionID, "transaction", "", "ID of the transaction to rank receipts for")
	rankCmd.Flags().StringVar(&rankReceiptID, "receipt", "", "ID of the receipt to rank transactions for")
	rankCmd.Flags().BoolVar(&rankBestOnly, "best", false, "only report the top candidate")
}

func validateRankFlags(cmd *cobra.Command, args []string) error {
	if (rankTransactionID == "") == (rankReceiptID == "") {
		return errors.ValidationError(errors.CodeMissingField, "transaction/receipt", "",
			fmt.Errorf("exactly one of --transaction or --receipt is required"))
	}
	if err := validateInputFiles(); err != nil {
		return err
	}
	return validateOutputFile(viper.GetString("output-file"))
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.WithComponent("cli").WithField("command", "rank")

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

	var (
		title       string
		suggestions []*models.MatchSuggestion
	)

	if rankTransactionID != "" {
		tx, err := findTransaction(transactions, rankTransactionID)
		if err != nil {
			return err
		}
		title = fmt.Sprintf("Candidate receipts for %s", tx.ID)
		if rankBestOnly {
			best, err := ranker.BestSuggestion(ctx, tx, receipts)
			if err != nil {
				return err
			}
			if best != nil {
				suggestions = []*models.MatchSuggestion{best}
			}
		} else if suggestions, err = ranker.RankCandidates(ctx, tx, receipts); err != nil {
			return err
		}
	} else {
		receipt, err := findReceipt(receipts, rankReceiptID)
		if err != nil {
			return err
		}
		title = fmt.Sprintf("Candidate transactions for %s", receipt.ID)
		if suggestions, err = ranker.RankTransactions(ctx, receipt, transactions); err != nil {
			return err
		}
		if rankBestOnly && len(suggestions) > 1 {
			suggestions = suggestions[:1]
		}
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.WriteSuggestionReport(title, suggestions, output)
}
