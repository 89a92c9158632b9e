package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"previa-reconciliation-service/cmd/previa/config"
	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/parsers"
	"previa-reconciliation-service/internal/reporter"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// validateInputFiles checks that the transactions and receipts exports exist
func validateInputFiles() error {
	if err := validateFileExists(viper.GetString("transactions"), "transactions file"); err != nil {
		return err
	}
	return validateFileExists(viper.GetString("receipts"), "receipts file")
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, "", nil).
			WithSuggestion(fmt.Sprintf("pass the %s with its flag or set it in the config file", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeInvalidFormat, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	return nil
}

// validateOutputFile checks that the directory of the output file exists
func validateOutputFile(outputFile string) error {
	if outputFile == "" {
		return nil
	}
	dir := filepath.Dir(outputFile)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, dir, fmt.Errorf("output directory does not exist: %s", dir))
	}
	return nil
}

// loadInputs parses both exports; row-level problems are logged and skipped
func loadInputs(ctx context.Context, log logger.Logger) ([]*models.Transaction, []*models.Receipt, error) {
	v := viper.GetViper()

	txConfig, err := config.CreateTransactionParserConfig(v)
	if err != nil {
		return nil, nil, err
	}
	txParser, err := parsers.NewTransactionParser(txConfig)
	if err != nil {
		return nil, nil, err
	}

	receiptConfig, err := config.CreateReceiptParserConfig(v)
	if err != nil {
		return nil, nil, err
	}
	receiptParser, err := parsers.NewReceiptParser(receiptConfig)
	if err != nil {
		return nil, nil, err
	}

	transactions, txStats, err := txParser.ParseTransactions(ctx, viper.GetString("transactions"))
	if err != nil {
		return nil, nil, err
	}
	receipts, receiptStats, err := receiptParser.ParseReceipts(ctx, viper.GetString("receipts"))
	if err != nil {
		return nil, nil, err
	}

	for name, stats := range map[string]*parsers.ParseStats{"transactions": txStats, "receipts": receiptStats} {
		entry := log.WithFields(logger.Fields{
			"input":          name,
			"records_valid":  stats.RecordsValid,
			"records_parsed": stats.RecordsParsed,
		})
		if stats.HasErrors() {
			entry.WithField("sample_errors", stats.GetSampleErrors(3)).Warnf("Skipped %d invalid rows", stats.ErrorCount)
		} else {
			entry.Debug("Input loaded")
		}
	}

	return transactions, receipts, nil
}

// newRanker builds a ranker from the matching.* configuration
func newRanker(log logger.Logger) (*matcher.Ranker, error) {
	matchingConfig, err := config.CreateMatchingConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log.WithField("config", matchingConfig.String()).Debug("Matching configuration")
	return matcher.NewRanker(matchingConfig, matcher.WithLogger(log))
}

// newReportGenerator builds the report generator from the output flags
func newReportGenerator(includeUnmatched bool, maxItems int) (*reporter.SafeReportGenerator, error) {
	reportConfig, err := config.CreateReportConfig(viper.GetString("output-format"), includeUnmatched, maxItems)
	if err != nil {
		return nil, err
	}
	return reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
}

// openOutput returns the report destination and a function that closes it
func openOutput(stdout io.Writer) (io.Writer, func() error, error) {
	outputFile := viper.GetString("output-file")
	if outputFile == "" {
		return stdout, func() error { return nil }, nil
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFilePermission, outputFile, err)
	}
	return file, file.Close, nil
}

// findTransaction returns the transaction with id
func findTransaction(transactions []*models.Transaction, id string) (*models.Transaction, error) {
	for _, tx := range transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, errors.ValidationError(errors.CodeInvalidRecord, "transaction", id, fmt.Errorf("no valid transaction with ID %q in the export", id))
}

// findReceipt returns the receipt with id
func findReceipt(receipts []*models.Receipt, id string) (*models.Receipt, error) {
	for _, r := range receipts {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.ValidationError(errors.CodeInvalidRecord, "receipt", id, fmt.Errorf("no valid receipt with ID %q in the export", id))
}
