package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"previa-reconciliation-service/internal/matcher"
	"previa-reconciliation-service/internal/models"
	"previa-reconciliation-service/internal/tiers"
	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with application errors and
// fallbacks. Reports are rendered into memory first so a failed render never
// leaves partial output behind.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		format := ""
		if config != nil {
			format = string(config.Format)
		}
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", format, err).
			WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// WriteBatchReport renders a batch result to writer
func (srg *SafeReportGenerator) WriteBatchReport(result *matcher.BatchResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "batch_result", nil, nil)
	}
	return srg.write("batch", writer, func(rg *ReportGenerator, w io.Writer) error {
		return rg.GenerateBatchReport(result, w)
	})
}

// WriteSuggestionReport renders a ranked candidate list to writer
func (srg *SafeReportGenerator) WriteSuggestionReport(title string, suggestions []*models.MatchSuggestion, writer io.Writer) error {
	return srg.write("suggestions", writer, func(rg *ReportGenerator, w io.Writer) error {
		return rg.GenerateSuggestionReport(title, suggestions, w)
	})
}

// WriteUsageReport renders tier usage reports to writer
func (srg *SafeReportGenerator) WriteUsageReport(reports []tiers.UsageReport, writer io.Writer) error {
	return srg.write("usage", writer, func(rg *ReportGenerator, w io.Writer) error {
		return rg.GenerateUsageReport(reports, w)
	})
}

func (srg *SafeReportGenerator) write(report string, writer io.Writer, render func(*ReportGenerator, io.Writer) error) error {
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil)
	}

	log := srg.logger.WithFields(logger.Fields{
		"report": report,
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	})
	log.Debug("Generating report")

	var buf bytes.Buffer
	if err := render(srg.ReportGenerator, &buf); err != nil {
		log.WithError(err).Warn("Primary report generation failed, attempting fallback")
		buf.Reset()
		if fallbackErr := srg.renderWithFormatFallback(render, &buf); fallbackErr != nil {
			return srg.wrapGenerationError(err)
		}
	}

	if _, err := buf.WriteTo(writer); err != nil {
		if file, ok := writer.(*os.File); ok {
			return srg.writeToBackup(file, buf.Bytes(), err)
		}
		return errors.FileError(errors.CodeFilePermission, getWriterDescription(writer), err)
	}

	log.Debug("Report generated")
	return nil
}

// renderWithFormatFallback retries a failed structured render as console output
func (srg *SafeReportGenerator) renderWithFormatFallback(render func(*ReportGenerator, io.Writer) error, buf *bytes.Buffer) error {
	if srg.config.Format == FormatConsole {
		return fmt.Errorf("no fallback for console format")
	}

	fallback := *srg.config
	fallback.Format = FormatConsole
	if err := render(&ReportGenerator{config: &fallback}, buf); err != nil {
		return err
	}

	srg.logger.WithFields(logger.Fields{
		"original_format": srg.config.Format,
		"fallback_format": FormatConsole,
	}).Info("Report generated using format fallback")
	return nil
}

// writeToBackup saves rendered output next to a file that could not be written
func (srg *SafeReportGenerator) writeToBackup(file *os.File, data []byte, originalErr error) error {
	originalPath := file.Name()
	backupPath := generateBackupPath(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Info("Attempting output fallback")

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return errors.FileError(errors.CodeFilePermission, originalPath, originalErr).
			WithContext("backup_error", err.Error())
	}

	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", originalPath, backupPath)
	return nil
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.InternalError(errors.CodeUnexpectedError, "report_generation", err).
		WithSuggestion("Check the output destination and report format settings")
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		switch w {
		case os.Stdout:
			return "stdout"
		case os.Stderr:
			return "stderr"
		default:
			return w.Name()
		}
	default:
		return fmt.Sprintf("%T", writer)
	}
}
