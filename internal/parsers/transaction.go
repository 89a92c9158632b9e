package parsers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"
)

// TransactionParser handles parsing of bank transaction CSV exports
type TransactionParser struct {
	*BaseParser
	config *TransactionParserConfig
	logger logger.Logger
}

// NewTransactionParser creates a new TransactionParser with the given configuration
func NewTransactionParser(config *TransactionParserConfig) (*TransactionParser, error) {
	if config == nil {
		config = DefaultTransactionParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"transaction_parser_config",
			string(config.Delimiter),
			err,
		).WithSuggestion("Check the transaction parser configuration values")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Delimiter = config.Delimiter

	log := logger.WithComponent("transaction_parser")
	log.WithField("delimiter", string(config.Delimiter)).Debug("Created transaction parser")

	return &TransactionParser{
		BaseParser: NewBaseParser(parseConfig, log),
		config:     config,
		logger:     log,
	}, nil
}

// ParseTransactions parses a CSV file of bank transactions. Rows that fail to
// parse or validate are recorded in the returned stats and skipped.
func (tp *TransactionParser) ParseTransactions(ctx context.Context, filePath string) ([]*models.Transaction, *ParseStats, error) {
	tp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_transactions",
	}).Info("Starting transaction parsing")

	file, reader, err := tp.OpenFile(filePath)
	if err != nil {
		tp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open transaction file")
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx, filePath)
	stats := NewParseStats()

	if err := tp.ReadHeaders(reader, parseCtx, tp.config.columns()); err != nil {
		tp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to read or validate headers")
		return nil, stats, err
	}

	transactions := make([]*models.Transaction, 0)
	seen := make(map[string]int)
	now := tp.config.Now()

	for {
		record, err := tp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := parseCtx.Err(); ctxErr != nil {
				tp.logger.Warn("Transaction parsing was cancelled")
				return transactions, stats, errors.Wrap(ctxErr, errors.CategoryInternal, errors.CodeCancelled, "transaction parsing cancelled")
			}
			if pe, ok := err.(*ParseError); ok {
				tp.logger.WithError(err).WithField("line_number", pe.Line).Warn("Failed to read record")
				stats.AddError(pe)
				continue
			}
			return transactions, stats, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}

		stats.RecordsParsed++

		transaction, parseErr := tp.parseTransactionFromRecord(record, parseCtx)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := transaction.Validate(now); err != nil {
			tp.logger.WithError(err).WithFields(logger.Fields{
				"line_number":    parseCtx.LineNumber,
				"transaction_id": transaction.ID,
			}).Warn("Transaction validation failed")
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Field:   FieldID,
				Value:   transaction.ID,
				Message: "transaction failed validation",
				Err:     errors.ValidationError(errors.CodeInvalidRecord, "transaction", transaction.ID, err),
			})
			continue
		}

		if first, dup := seen[transaction.ID]; dup {
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Field:   FieldID,
				Value:   transaction.ID,
				Message: fmt.Sprintf("duplicate transaction ID, first seen at line %d", first),
			})
			continue
		}
		seen[transaction.ID] = parseCtx.LineNumber

		transactions = append(transactions, transaction)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	tp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Transaction parsing completed")

	if stats.HasErrors() {
		tp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return transactions, stats, nil
}

// parseTransactionFromRecord converts a CSV record to a Transaction
func (tp *TransactionParser) parseTransactionFromRecord(record []string, parseCtx *ParseContext) (*models.Transaction, *ParseError) {
	line := parseCtx.LineNumber
	get := func(field string) string { return tp.GetFieldValue(record, parseCtx, field) }

	id := get(FieldID)
	if id == "" {
		return nil, &ParseError{Line: line, Field: FieldID, Message: "transaction ID cannot be empty"}
	}

	dateStr := get(FieldDate)
	date, err := parseDate(dateStr, tp.config.DateFormats)
	if err != nil {
		return nil, &ParseError{Line: line, Field: FieldDate, Value: dateStr, Message: "invalid date", Err: err}
	}

	amountStr := get(FieldAmount)
	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return nil, &ParseError{Line: line, Field: FieldAmount, Value: amountStr, Message: "invalid amount", Err: err}
	}

	status := models.TransactionUnreconciled
	if s := get(FieldStatus); s != "" {
		status = models.TransactionStatus(strings.ToLower(s))
		if !status.IsValid() {
			return nil, &ParseError{Line: line, Field: FieldStatus, Value: s, Message: "unknown transaction status"}
		}
	}

	transaction := &models.Transaction{
		ID:              id,
		UserID:          get(FieldUserID),
		BankStatementID: get(FieldBankStatementID),
		Date:            models.CalendarDate(date),
		Description:     get(FieldDescription),
		Amount:          amount,
		Status:          status,
	}

	if category := get(FieldCategory); category != "" {
		transaction.Category = &category
	}

	if createdStr := get(FieldCreatedAt); createdStr != "" {
		created, err := parseDate(createdStr, tp.config.DateFormats)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldCreatedAt, Value: createdStr, Message: "invalid timestamp", Err: err}
		}
		transaction.CreatedAt = created
	}

	return transaction, nil
}

// parseDate tries each layout in order
func parseDate(value string, layouts []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q does not match any of the layouts %v", value, layouts)
}
