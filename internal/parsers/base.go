// Package parsers loads transaction and receipt exports from CSV files.
//
// Exports come from the hosted database or from spreadsheets users edited by
// hand, so the parsers accept several header spellings per field, tolerate
// currency symbols and thousands separators in amounts, and accept the common
// date layouts. Rows that fail to parse or validate are collected in
// ParseStats and skipped; only file-level problems abort a parse.
//
// Example usage:
//
//	parser, err := NewTransactionParser(DefaultTransactionParserConfig())
//	transactions, stats, err := parser.ParseTransactions(ctx, "transactions.csv")
//	if stats.HasErrors() {
//		log.Warn(stats.GetSampleErrors(3))
//	}
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"
)

// encodingCheckLines bounds how much of a file is scanned for invalid UTF-8
const encodingCheckLines = 100

// ParseError represents an error that occurred on one CSV row
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("parse error at line %d (%s='%s'): %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1 << 20,
		ValidateEncoding: true,
	}
}

// Column names a logical field and the header spellings accepted for it
type Column struct {
	Field    string
	Headers  []string
	Required bool
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig, log logger.Logger) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	if log == nil {
		log = logger.WithComponent("parser")
	}
	return &BaseParser{config: config, logger: log}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	File       string
	LineNumber int
	Headers    []string
	Columns    map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, file string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		File:    file,
		Columns: make(map[string]int),
		ctx:     ctx,
	}
}

// Err returns the context error once parsing has been cancelled
func (pc *ParseContext) Err() error {
	return pc.ctx.Err()
}

// HasColumn reports whether a logical field was found in the header row
func (pc *ParseContext) HasColumn(field string) bool {
	_, ok := pc.Columns[field]
	return ok
}

// OpenFile opens a CSV file and returns a configured csv.Reader
func (bp *BaseParser) OpenFile(filePath string) (*os.File, *csv.Reader, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		case os.IsPermission(err):
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		default:
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), bp.config.MaxFieldSize+64*1024)

	for line := 1; scanner.Scan() && line <= encodingCheckLines; line++ {
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(errors.CodeEncodingError, filePath, line, "",
				fmt.Errorf("invalid UTF-8 encoding detected"))
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	return nil
}

// ReadHeaders reads the header row and resolves every column to its index.
// A missing required column fails the whole file.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, columns []Column) error {
	headers, err := reader.Read()
	if err == io.EOF {
		return errors.ParseError(errors.CodeMissingColumn, parseCtx.File, 1, "header row", nil).
			WithSuggestion("ensure the file contains a header row followed by data rows")
	}
	if err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.File, 1, "headers", err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = make([]string, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		cleaned := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		parseCtx.Headers[i] = cleaned
		key := normalizeHeader(cleaned)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range columns {
		found := false
		for _, name := range col.Headers {
			if i, ok := index[normalizeHeader(name)]; ok {
				parseCtx.Columns[col.Field] = i
				found = true
				break
			}
		}
		if !found && col.Required {
			missing = append(missing, col.Field)
		}
	}

	bp.logger.WithFields(logger.Fields{
		"headers": parseCtx.Headers,
		"missing": missing,
	}).Debug("Resolved CSV headers")

	if len(missing) > 0 {
		return errors.ParseError(errors.CodeMissingColumn, parseCtx.File, 1, strings.Join(missing, ", "), nil).
			WithContext("available_headers", parseCtx.Headers)
	}
	return nil
}

// ReadRecord reads the next non-empty record. It returns io.EOF at the end of
// the file and the context error once parsing is cancelled.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if err := parseCtx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var csvErr *csv.ParseError
			if stderrors.As(err, &csvErr) {
				parseCtx.LineNumber = csvErr.StartLine
			} else {
				parseCtx.LineNumber++
			}
			return nil, &ParseError{Line: parseCtx.LineNumber, Message: "malformed CSV row", Err: err}
		}
		parseCtx.LineNumber, _ = reader.FieldPos(0)

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, &ParseError{
						Line:    parseCtx.LineNumber,
						Field:   fmt.Sprintf("column %d", i+1),
						Message: fmt.Sprintf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize),
					}
				}
			}
		}

		return record, nil
	}
}

// GetFieldValue returns the trimmed value of a logical field; absent columns
// and short rows read as empty
func (bp *BaseParser) GetFieldValue(record []string, parseCtx *ParseContext, field string) string {
	index, ok := parseCtx.Columns[field]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader makes "Receipt Date", "receipt_date" and "receiptDate" equal
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	ErrorCount    int
	Errors        []*ParseError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{Errors: make([]*ParseError, 0)}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error messages
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}
