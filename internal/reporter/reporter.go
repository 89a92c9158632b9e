// Package reporter renders match suggestions, batch suggestion results and
// tier usage reports.
//
// Supported output formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per suggestion or unmatched record, for spreadsheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:           reporter.FormatJSON,
//		IncludeUnmatched: true,
//	})
//	err = generator.GenerateBatchReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/tiers"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ParseOutputFormat converts a flag value to an OutputFormat
func ParseOutputFormat(value string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(value)))
	if !f.IsValid() {
		return "", fmt.Errorf("unsupported output format %q, expected console, json or csv", value)
	}
	return f, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeUnmatched lists transactions and receipts left without a suggestion
	IncludeUnmatched bool `json:"include_unmatched"`
	// IncludeReasons adds match reasons to console output
	IncludeReasons bool `json:"include_reasons"`
	// MaxItems bounds each console list; 0 means no bound
	MaxItems int `json:"max_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeUnmatched: true,
		IncludeReasons:   true,
		MaxItems:         50,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator renders reports in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// Config returns the generator's configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateBatchReport renders the outcome of a batch suggestion pass
func (rg *ReportGenerator) GenerateBatchReport(result *matcher.BatchResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("batch result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.batchConsole(result, writer)
	case FormatJSON:
		return writeJSON(writer, rg.filterBatchForOutput(result))
	case FormatCSV:
		return rg.batchCSV(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateSuggestionReport renders a ranked candidate list under a title
func (rg *ReportGenerator) GenerateSuggestionReport(title string, suggestions []*models.MatchSuggestion, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(title))
		if len(suggestions) == 0 {
			fmt.Fprintf(writer, "No candidates reached the suggestion threshold\n")
			return nil
		}
		rg.printSuggestions(suggestions, writer)
		return nil
	case FormatJSON:
		if suggestions == nil {
			suggestions = []*models.MatchSuggestion{}
		}
		return writeJSON(writer, suggestions)
	case FormatCSV:
		return rg.suggestionsCSV(suggestions, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateUsageReport renders tier usage reports
func (rg *ReportGenerator) GenerateUsageReport(reports []tiers.UsageReport, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		fmt.Fprintf(writer, "=== TIER USAGE ===\n")
		for _, r := range reports {
			fmt.Fprintf(writer, "%-13s %d / %s (%d%%)  %s\n",
				r.Kind+":", r.Current, r.Limit, r.UsagePercentage, r.LimitMessage)
			switch {
			case !r.CanCreate:
				fmt.Fprintf(writer, "  Limit reached. %s\n", r.UpgradeMessage)
			case r.NearLimit:
				fmt.Fprintf(writer, "  Approaching limit. %s\n", r.UpgradeMessage)
			}
		}
		return nil
	case FormatJSON:
		if reports == nil {
			reports = []tiers.UsageReport{}
		}
		return writeJSON(writer, reports)
	case FormatCSV:
		return rg.writeCSV(writer,
			[]string{"User_ID", "Tier", "Kind", "Current", "Limit", "Can_Create", "Near_Limit", "Usage_Percentage", "Limit_Message", "Upgrade_Message"},
			func(emit func([]string) error) error {
				for _, r := range reports {
					if err := emit([]string{
						r.UserID,
						string(r.Tier),
						string(r.Kind),
						strconv.FormatInt(r.Current, 10),
						r.Limit.String(),
						strconv.FormatBool(r.CanCreate),
						strconv.FormatBool(r.NearLimit),
						strconv.Itoa(r.UsagePercentage),
						r.LimitMessage,
						r.UpgradeMessage,
					}); err != nil {
						return err
					}
				}
				return nil
			})
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) batchConsole(result *matcher.BatchResult, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "MATCH SUGGESTION REPORT\n")
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", summary.ProcessingTime.Round(time.Millisecond))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Transactions:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalTransactions)
	fmt.Fprintf(writer, "  Skipped:   %d\n", summary.SkippedTransactions)
	fmt.Fprintf(writer, "  Suggested: %d (%.1f%%)\n", summary.Suggested,
		calculatePercentage(summary.Suggested, summary.TotalTransactions-summary.SkippedTransactions))
	fmt.Fprintf(writer, "  Unmatched: %d\n", summary.UnmatchedTransactions)
	fmt.Fprintf(writer, "\nReceipts:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalReceipts)
	fmt.Fprintf(writer, "  Skipped:   %d\n", summary.SkippedReceipts)
	fmt.Fprintf(writer, "  Unmatched: %d\n", summary.UnmatchedReceipts)
	fmt.Fprintf(writer, "\nPairs Scored:         %d\n", summary.PairsScored)
	fmt.Fprintf(writer, "Total Amount Matched: %s\n\n", summary.TotalAmountMatched.StringFixed(2))

	fmt.Fprintf(writer, "=== CONFIDENCE BREAKDOWN ===\n")
	fmt.Fprintf(writer, "High:            %d (%.1f%%)\n", summary.HighConfidence,
		calculatePercentage(summary.HighConfidence, summary.Suggested))
	fmt.Fprintf(writer, "Medium:          %d (%.1f%%)\n", summary.MediumConfidence,
		calculatePercentage(summary.MediumConfidence, summary.Suggested))
	fmt.Fprintf(writer, "Auto-approvable: %d\n\n", summary.AutoApprovable)

	if len(result.Suggestions) > 0 {
		fmt.Fprintf(writer, "=== SUGGESTIONS ===\n")
		rg.printSuggestions(result.Suggestions, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched && len(result.UnmatchedTransactions) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED TRANSACTIONS ===\n")
		rg.printList(len(result.UnmatchedTransactions), writer, func(i int) string {
			tx := result.UnmatchedTransactions[i]
			return fmt.Sprintf("ID: %s, Amount: %s, Date: %s, Description: %s",
				tx.ID, tx.Amount.StringFixed(2), tx.Date.Format(models.DateLayout), tx.Description)
		})
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched && len(result.UnmatchedReceipts) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED RECEIPTS ===\n")
		rg.printList(len(result.UnmatchedReceipts), writer, func(i int) string {
			r := result.UnmatchedReceipts[i]
			return fmt.Sprintf("ID: %s, Amount: %s, Date: %s, Merchant: %s",
				r.ID, receiptAmount(r), receiptDate(r), r.Merchant())
		})
		fmt.Fprintf(writer, "\n")
	}

	return nil
}

func (rg *ReportGenerator) printSuggestions(suggestions []*models.MatchSuggestion, writer io.Writer) {
	rg.printList(len(suggestions), writer, func(i int) string {
		s := suggestions[i]
		line := fmt.Sprintf("%s <-> %s  %d%% %s  (date %.2f, amount %.2f, merchant %.2f)",
			s.Transaction.ID, s.Receipt.ID, s.ConfidenceScore, strings.ToUpper(s.ConfidenceLevel.String()),
			s.DateScore, s.AmountScore, s.MerchantScore)
		if rg.config.IncludeReasons && len(s.MatchReasons) > 0 {
			line += "\n     " + strings.Join(s.MatchReasons, "; ")
		}
		return line
	})
}

func (rg *ReportGenerator) printList(n int, writer io.Writer, line func(i int) string) {
	limit := n
	if rg.config.MaxItems > 0 && rg.config.MaxItems < n {
		limit = rg.config.MaxItems
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(writer, "  %d. %s\n", i+1, line(i))
	}
	if limit < n {
		fmt.Fprintf(writer, "  ... and %d more\n", n-limit)
	}
}

var suggestionHeaders = []string{
	"Type",
	"Transaction_ID",
	"Receipt_ID",
	"Transaction_Amount",
	"Receipt_Amount",
	"Transaction_Date",
	"Receipt_Date",
	"Merchant",
	"Confidence_Score",
	"Confidence_Level",
	"Date_Difference_Days",
	"Amount_Difference",
	"Reasons",
}

func (rg *ReportGenerator) batchCSV(result *matcher.BatchResult, writer io.Writer) error {
	return rg.writeCSV(writer, suggestionHeaders, func(emit func([]string) error) error {
		for _, s := range result.Suggestions {
			if err := emit(suggestionRecord(s)); err != nil {
				return err
			}
		}
		if !rg.config.IncludeUnmatched {
			return nil
		}
		for _, tx := range result.UnmatchedTransactions {
			if err := emit([]string{
				"Unmatched Transaction", tx.ID, "", tx.Amount.StringFixed(2), "",
				tx.Date.Format(models.DateLayout), "", "", "", "", "", "",
				"No receipt reached the suggestion threshold",
			}); err != nil {
				return err
			}
		}
		for _, r := range result.UnmatchedReceipts {
			if err := emit([]string{
				"Unmatched Receipt", "", r.ID, "", receiptAmount(r),
				"", receiptDate(r), r.Merchant(), "", "", "", "",
				"No transaction reached the suggestion threshold",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (rg *ReportGenerator) suggestionsCSV(suggestions []*models.MatchSuggestion, writer io.Writer) error {
	return rg.writeCSV(writer, suggestionHeaders, func(emit func([]string) error) error {
		for _, s := range suggestions {
			if err := emit(suggestionRecord(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (rg *ReportGenerator) writeCSV(writer io.Writer, headers []string, rows func(emit func([]string) error) error) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if err := rows(func(record []string) error {
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func suggestionRecord(s *models.MatchSuggestion) []string {
	days, diff := "", ""
	if s.DateDifferenceDays != nil {
		days = strconv.Itoa(*s.DateDifferenceDays)
	}
	if s.AmountDifference != nil {
		diff = s.AmountDifference.StringFixed(2)
	}
	return []string{
		"Suggestion",
		s.Transaction.ID,
		s.Receipt.ID,
		s.Transaction.Amount.StringFixed(2),
		receiptAmount(s.Receipt),
		s.Transaction.Date.Format(models.DateLayout),
		receiptDate(s.Receipt),
		s.Receipt.Merchant(),
		strconv.Itoa(s.ConfidenceScore),
		s.ConfidenceLevel.String(),
		days,
		diff,
		strings.Join(s.MatchReasons, "; "),
	}
}

// filterBatchForOutput drops unmatched lists when they are not requested
func (rg *ReportGenerator) filterBatchForOutput(result *matcher.BatchResult) map[string]interface{} {
	output := map[string]interface{}{
		"summary":     result.Summary,
		"suggestions": nonNil(result.Suggestions),
	}
	if rg.config.IncludeUnmatched {
		output["unmatched_transactions"] = result.UnmatchedTransactions
		output["unmatched_receipts"] = result.UnmatchedReceipts
	}
	return output
}

func writeJSON(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func nonNil(s []*models.MatchSuggestion) []*models.MatchSuggestion {
	if s == nil {
		return []*models.MatchSuggestion{}
	}
	return s
}

func receiptAmount(r *models.Receipt) string {
	if r.Amount == nil {
		return ""
	}
	return r.Amount.StringFixed(2)
}

func receiptDate(r *models.Receipt) string {
	if r.Date == nil {
		return ""
	}
	return r.Date.Format(models.DateLayout)
}

func calculatePercentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
