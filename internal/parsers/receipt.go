package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"
)

// ReceiptParser handles parsing of receipt CSV exports
type ReceiptParser struct {
	*BaseParser
	config *ReceiptParserConfig
	logger logger.Logger
}

// NewReceiptParser creates a new ReceiptParser with the given configuration
func NewReceiptParser(config *ReceiptParserConfig) (*ReceiptParser, error) {
	if config == nil {
		config = DefaultReceiptParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"receipt_parser_config",
			string(config.Delimiter),
			err,
		).WithSuggestion("Check the receipt parser configuration values")
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Delimiter = config.Delimiter

	log := logger.WithComponent("receipt_parser")
	log.WithFields(logger.Fields{
		"delimiter":      string(config.Delimiter),
		"default_status": config.DefaultStatus,
	}).Debug("Created receipt parser")

	return &ReceiptParser{
		BaseParser: NewBaseParser(parseConfig, log),
		config:     config,
		logger:     log,
	}, nil
}

// ParseReceipts parses a CSV file of receipts. Extracted fields left empty in
// the export stay nil on the receipt.
func (rp *ReceiptParser) ParseReceipts(ctx context.Context, filePath string) ([]*models.Receipt, *ParseStats, error) {
	rp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_receipts",
	}).Info("Starting receipt parsing")

	file, reader, err := rp.OpenFile(filePath)
	if err != nil {
		rp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open receipt file")
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx, filePath)
	stats := NewParseStats()

	if err := rp.ReadHeaders(reader, parseCtx, rp.config.columns()); err != nil {
		rp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to read or validate headers")
		return nil, stats, err
	}

	receipts := make([]*models.Receipt, 0)
	seen := make(map[string]int)

	for {
		record, err := rp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := parseCtx.Err(); ctxErr != nil {
				rp.logger.Warn("Receipt parsing was cancelled")
				return receipts, stats, errors.Wrap(ctxErr, errors.CategoryInternal, errors.CodeCancelled, "receipt parsing cancelled")
			}
			if pe, ok := err.(*ParseError); ok {
				rp.logger.WithError(err).WithField("line_number", pe.Line).Warn("Failed to read record")
				stats.AddError(pe)
				continue
			}
			return receipts, stats, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}

		stats.RecordsParsed++

		receipt, parseErr := rp.parseReceiptFromRecord(record, parseCtx)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := receipt.Validate(); err != nil {
			rp.logger.WithError(err).WithFields(logger.Fields{
				"line_number": parseCtx.LineNumber,
				"receipt_id":  receipt.ID,
			}).Warn("Receipt validation failed")
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Field:   FieldID,
				Value:   receipt.ID,
				Message: "receipt failed validation",
				Err:     errors.ValidationError(errors.CodeInvalidRecord, "receipt", receipt.ID, err),
			})
			continue
		}

		if first, dup := seen[receipt.ID]; dup {
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Field:   FieldID,
				Value:   receipt.ID,
				Message: fmt.Sprintf("duplicate receipt ID, first seen at line %d", first),
			})
			continue
		}
		seen[receipt.ID] = parseCtx.LineNumber

		receipts = append(receipts, receipt)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	rp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Receipt parsing completed")

	if stats.HasErrors() {
		rp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return receipts, stats, nil
}

// parseReceiptFromRecord converts a CSV record to a Receipt
func (rp *ReceiptParser) parseReceiptFromRecord(record []string, parseCtx *ParseContext) (*models.Receipt, *ParseError) {
	line := parseCtx.LineNumber
	get := func(field string) string { return rp.GetFieldValue(record, parseCtx, field) }

	id := get(FieldID)
	if id == "" {
		return nil, &ParseError{Line: line, Field: FieldID, Message: "receipt ID cannot be empty"}
	}

	receipt := &models.Receipt{
		ID:               id,
		UserID:           get(FieldUserID),
		FilePath:         get(FieldFilePath),
		ProcessingStatus: rp.config.DefaultStatus,
	}

	if s := get(FieldProcessingStatus); s != "" {
		receipt.ProcessingStatus = models.ProcessingStatus(strings.ToLower(s))
		if !receipt.ProcessingStatus.IsValid() {
			return nil, &ParseError{Line: line, Field: FieldProcessingStatus, Value: s, Message: "unknown processing status"}
		}
	}

	if s := get(FieldDate); s != "" {
		date, err := parseDate(s, rp.config.DateFormats)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldDate, Value: s, Message: "invalid receipt date", Err: err}
		}
		date = models.CalendarDate(date)
		receipt.Date = &date
	}

	if s := get(FieldMerchantName); s != "" {
		receipt.MerchantName = &s
	}

	if s := get(FieldAmount); s != "" {
		amount, err := models.ParseAmount(s)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldAmount, Value: s, Message: "invalid amount", Err: err}
		}
		receipt.Amount = &amount
	}

	if s := get(FieldTaxAmount); s != "" {
		tax, err := models.ParseAmount(s)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldTaxAmount, Value: s, Message: "invalid tax amount", Err: err}
		}
		receipt.TaxAmount = &tax
	}

	if s := get(FieldOCRData); s != "" {
		if !json.Valid([]byte(s)) {
			return nil, &ParseError{Line: line, Field: FieldOCRData, Value: s, Message: "OCR data is not valid JSON"}
		}
		receipt.OCRData = json.RawMessage(s)
	}

	if s := get(FieldOCRConfidence); s != "" {
		confidence, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldOCRConfidence, Value: s, Message: "invalid OCR confidence", Err: err}
		}
		receipt.OCRConfidence = &confidence
	}

	if s := get(FieldFileSize); s != "" {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldFileSize, Value: s, Message: "invalid file size", Err: err}
		}
		receipt.FileSize = size
	}

	if s := get(FieldCreatedAt); s != "" {
		created, err := parseDate(s, rp.config.DateFormats)
		if err != nil {
			return nil, &ParseError{Line: line, Field: FieldCreatedAt, Value: s, Message: "invalid timestamp", Err: err}
		}
		receipt.CreatedAt = created
	}

	return receipt, nil
}
