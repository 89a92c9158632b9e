// Package config builds validated component configurations from viper.
//
// Keys, all optional:
//
//	matching.preset                     default | strict | relaxed
//	matching.weights.date_weight        and amount_weight, merchant_weight
//	matching.thresholds.suggest_threshold, auto_approve_threshold
//	matching.max_date_difference_days
//	matching.max_amount_difference      decimal string, e.g. "0.50"
//	matching.ocr.receipt_data_threshold, account_number_threshold
//	matching.min_reason_contribution
//	matching.workers
//	tiers.<tier>.<kind>                 integer or "unlimited"
//	parsers.delimiter
//	parsers.date_formats
//	log.level, log.format, log.output, log.file
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/parsers"
	"previa-reconciliation-service/internal/reporter"
	"previa-reconciliation-service/internal/tiers"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Matching presets
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetRelaxed = "relaxed"
)

// CreateMatchingConfig starts from the configured preset and applies any
// matching.* overrides
func CreateMatchingConfig(v *viper.Viper) (*matcher.MatchingConfig, error) {
	preset := strings.ToLower(v.GetString("matching.preset"))

	var config *matcher.MatchingConfig
	switch preset {
	case "", PresetDefault:
		config = matcher.DefaultMatchingConfig()
	case PresetStrict:
		config = matcher.StrictMatchingConfig()
	case PresetRelaxed:
		config = matcher.RelaxedMatchingConfig()
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.preset", preset, nil).
			WithSuggestion("use one of: default, strict, relaxed")
	}

	if v.IsSet("matching") {
		if err := v.UnmarshalKey("matching", config); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", nil, err)
		}
	}

	// Flag and environment bindings are not part of the nested map
	if v.IsSet("matching.max_date_difference_days") {
		config.MaxDateDifferenceDays = v.GetInt("matching.max_date_difference_days")
	}
	if v.IsSet("matching.thresholds.suggest_threshold") {
		config.Thresholds.Suggest = v.GetFloat64("matching.thresholds.suggest_threshold")
	}
	if v.IsSet("matching.workers") {
		config.Workers = v.GetInt("matching.workers")
	}

	if v.IsSet("matching.max_amount_difference") {
		raw := v.GetString("matching.max_amount_difference")
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.max_amount_difference", raw, err)
		}
		config.MaxAmountDifference = amount
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateTierPolicy starts from the production tier limits and applies any
// tiers.<tier>.<kind> overrides
func CreateTierPolicy(v *viper.Viper) (*tiers.Policy, error) {
	policy := tiers.DefaultPolicy()

	for _, tier := range []models.SubscriptionTier{models.TierUser, models.TierPremium} {
		limits := policy.Tiers[tier]
		for _, kind := range []models.ResourceKind{models.ResourceAccounts, models.ResourceTransactions, models.ResourceReceipts} {
			key := fmt.Sprintf("tiers.%s.%s", tier, kind)
			if !v.IsSet(key) {
				continue
			}
			raw := v.GetString(key)
			limit, err := tiers.ParseLimit(raw)
			if err != nil {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig, key, raw, err)
			}
			switch kind {
			case models.ResourceAccounts:
				limits.Accounts = limit
			case models.ResourceTransactions:
				limits.TransactionsPerMonth = limit
			case models.ResourceReceipts:
				limits.ReceiptsPerMonth = limit
			}
		}
		policy.Tiers[tier] = limits
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// CreateTransactionParserConfig applies parsers.* overrides to the default transaction parser configuration
func CreateTransactionParserConfig(v *viper.Viper) (*parsers.TransactionParserConfig, error) {
	config := parsers.DefaultTransactionParserConfig()
	delimiter, formats, err := parserOverrides(v, config.Delimiter, config.DateFormats)
	if err != nil {
		return nil, err
	}
	config.Delimiter, config.DateFormats = delimiter, formats
	return config, nil
}

// CreateReceiptParserConfig applies parsers.* overrides to the default receipt parser configuration
func CreateReceiptParserConfig(v *viper.Viper) (*parsers.ReceiptParserConfig, error) {
	config := parsers.DefaultReceiptParserConfig()
	delimiter, formats, err := parserOverrides(v, config.Delimiter, config.DateFormats)
	if err != nil {
		return nil, err
	}
	config.Delimiter, config.DateFormats = delimiter, formats
	return config, nil
}

func parserOverrides(v *viper.Viper, delimiter rune, formats []string) (rune, []string, error) {
	if v.IsSet("parsers.delimiter") {
		raw := v.GetString("parsers.delimiter")
		if raw == `\t` || raw == "tab" {
			raw = "\t"
		}
		if utf8.RuneCountInString(raw) != 1 {
			return 0, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parsers.delimiter", raw, nil).
				WithSuggestion("the delimiter must be a single character")
		}
		delimiter, _ = utf8.DecodeRuneInString(raw)
	}
	if v.IsSet("parsers.date_formats") {
		formats = v.GetStringSlice("parsers.date_formats")
	}
	return delimiter, formats, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, includeUnmatched bool, maxItems int) (*reporter.ReportConfig, error) {
	outputFormat, err := reporter.ParseOutputFormat(format)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, err)
	}

	config := reporter.DefaultReportConfig()
	config.Format = outputFormat
	config.IncludeUnmatched = includeUnmatched
	config.MaxItems = maxItems

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", format, err)
	}
	return config, nil
}

// CreateLoggerConfig builds the logger configuration from log.* keys; verbose
// forces debug level
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if v.IsSet("log.level") {
		config.Level = logger.Level(strings.ToLower(v.GetString("log.level")))
	}
	if v.IsSet("log.format") {
		config.Format = logger.Format(strings.ToLower(v.GetString("log.format")))
	}
	if v.IsSet("log.output") {
		config.Output = logger.Output(strings.ToLower(v.GetString("log.output")))
	}
	if v.IsSet("log.file") {
		config.File = v.GetString("log.file")
	}
	if verbose {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", string(config.Level), err)
	}
	return config, nil
}
