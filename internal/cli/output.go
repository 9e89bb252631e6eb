package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/albardn2/karma-sub001/internal/apperr"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rejected operation, failed scenario, ledger out of balance
	ExitCommandError = 2 // bad flags or config, unreadable input, unopenable database
)

// codeInternal labels failures that carry no apperr kind.
const codeInternal = "INTERNAL"

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError that wraps err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as a JSON envelope or as text.
// Diagnostics go to ErrWriter so they never mix with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of CLIResponse. Code is an apperr kind such as
// BAD_REQUEST, or INTERNAL.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Render writes data in the envelope when the format is JSON and hands the
// writer to text otherwise.
func (f *OutputFormatter) Render(data any, text func(w io.Writer) error) error {
	if f.isJSON() {
		return f.Success(data)
	}
	return text(f.Writer)
}

// Done is Render for results whose text form is one confirmation line.
func (f *OutputFormatter) Done(data any, format string, args ...any) error {
	return f.Render(data, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ "+format+"\n", args...)
		return err
	})
}

// Success writes data in the "ok" envelope, or prints it as is.
func (f *OutputFormatter) Success(data any) error {
	if !f.isJSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error writes a failure. Text mode only shows details when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// reportError renders a failed operation and returns the ExitError the
// command should return. In text mode nothing is written here; main prints
// the returned error.
func reportError(f *OutputFormatter, action string, err error) error {
	if f.isJSON() {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			_ = f.Error(string(ae.Kind), ae.Message, ae.Details)
		} else {
			_ = f.Error(codeInternal, err.Error(), nil)
		}
	}
	return WrapExitError(ExitFailure, action, err)
}
