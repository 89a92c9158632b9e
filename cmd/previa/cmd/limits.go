package cmd

import (
	"fmt"

	"previa-reconciliation-service/cmd/previa/config"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/tiers"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the limits command
var (
	limitsUserID           string
	limitsTier             string
	accountCount           int64
	transactionCount       int64
	receiptCount           int64
	recordAccountLimit     int64
	recordTransactionLimit int64
	recordReceiptLimit     int64
)

// limitsCmd represents the limits command
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Check usage against subscription tier limits",
	Long: `Limits reports, for each resource kind, whether another record may be
created, how close usage is to the limit and the message shown to the user.

Limits stored on the user's tier record override the configured policy;
999999 on a record means unlimited.

Examples:
  previa limits --tier user --account-count 2 --receipt-count 45
  previa limits --tier premium_user --transaction-count 12000
  previa limits --tier user --receipt-count 60 --receipt-limit 100 -f json`,

	PreRunE: validateLimitsFlags,
	RunE:    runLimits,
}

func init() {
	rootCmd.AddCommand(limitsCmd)

	limitsCmd.Flags().StringVar(&limitsUserID, "user-id", "", "user ID to include in the report")
	limitsCmd.Flags().StringVar(&limitsTier, "tier", string(models.TierUser), "subscription tier: user, premium_user")
	limitsCmd.Flags().Int64Var(&accountCount, "account-count", 0, "connected accounts")
	limitsCmd.Flags().Int64Var(&transactionCount, "transaction-count", 0, "transactions this month")
	limitsCmd.Flags().Int64Var(&receiptCount, "receipt-count", 0, "receipts uploaded this month")
	limitsCmd.Flags().Int64Var(&recordAccountLimit, "account-limit", 0, "account limit stored on the tier record (0 for policy)")
	limitsCmd.Flags().Int64Var(&recordTransactionLimit, "transaction-limit", 0, "monthly transaction limit stored on the tier record (0 for policy)")
	limitsCmd.Flags().Int64Var(&recordReceiptLimit, "receipt-limit", 0, "monthly receipt limit stored on the tier record (0 for policy)")
}

func validateLimitsFlags(cmd *cobra.Command, args []string) error {
	if _, err := models.ParseSubscriptionTier(limitsTier); err != nil {
		return errors.ValidationError(errors.CodeInvalidRecord, "tier", limitsTier, err)
	}
	for name, n := range map[string]int64{
		"account-count":     accountCount,
		"transaction-count": transactionCount,
		"receipt-count":     receiptCount,
		"account-limit":     recordAccountLimit,
		"transaction-limit": recordTransactionLimit,
		"receipt-limit":     recordReceiptLimit,
	} {
		if n < 0 {
			return errors.ValidationError(errors.CodeOutOfRange, name, n, fmt.Errorf("%s cannot be negative", name))
		}
	}
	return validateOutputFile(viper.GetString("output-file"))
}

func runLimits(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli").WithField("command", "limits")

	policy, err := config.CreateTierPolicy(viper.GetViper())
	if err != nil {
		return err
	}
	validator, err := tiers.NewValidator(policy)
	if err != nil {
		return err
	}
	generator, err := newReportGenerator(false, 0)
	if err != nil {
		return err
	}

	tier, _ := models.ParseSubscriptionTier(limitsTier)
	data := models.UserTierData{
		UserID:                   limitsUserID,
		Tier:                     tier,
		AccountLimit:             recordAccountLimit,
		TransactionLimitPerMonth: recordTransactionLimit,
		ReceiptLimitPerMonth:     recordReceiptLimit,
	}

	reports := []tiers.UsageReport{
		validator.Check(data, models.ResourceAccounts, accountCount),
		validator.Check(data, models.ResourceTransactions, transactionCount),
		validator.Check(data, models.ResourceReceipts, receiptCount),
	}

	for _, r := range reports {
		log.WithFields(logger.Fields{
			"kind":       r.Kind,
			"can_create": r.CanCreate,
			"near_limit": r.NearLimit,
		}).Debug("Checked tier limit")
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.WriteUsageReport(reports, output)
}
