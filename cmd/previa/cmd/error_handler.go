package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"previa-reconciliation-service/pkg/errors"
	"previa-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler turns command errors into user-facing messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a handler that writes to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return newCLIErrorHandler(os.Stderr)
}

func newCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check that the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// Flag parsing and unknown command errors from cobra land here
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'previa --help' for usage.\n")
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the export exists and is readable
• Verify the path (use absolute paths if needed)
• Ensure the output directory exists and is writable`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the CSV header row names the required columns
• Ensure the file is UTF-8 encoded
• Use --config to declare column aliases or a different delimiter`

	case errors.CategoryValidation:
		return `Validation error help:
• Check the IDs passed to --transaction and --receipt
• Verify dates use YYYY-MM-DD and amounts are plain decimals
• Counts and limits cannot be negative`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Matching weights must sum to exactly 1
• The suggest threshold cannot exceed the auto-approve threshold
• Use 'previa --help' to see the available flags`

	case errors.CategoryMatching:
		return `Matching error help:
• Transaction and receipt IDs must be unique within an export
• Try again with --workers 1 and --verbose for details`

	default:
		return `For more help:
• Use 'previa --help' for general help
• Use 'previa <command> --help' for command-specific help
• Run with --verbose to see the underlying error`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full")
}
