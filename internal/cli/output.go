package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Architect8989/EME/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every experiment was recorded
	ExitFailure      = 1 // an experiment aborted, a record was lost, or verification found damage
	ExitCommandError = 2 // bad flags, config or paths
)

// Error codes used in JSON error responses.
const (
	CodeConfig    = "E001" // configuration could not be loaded
	CodeSetup     = "E002" // stores or logs could not be opened
	CodeAborted   = "E003" // experiment aborted before its record was written
	CodeLost      = "E004" // record logger failed
	CodeIntegrity = "E005" // stored data failed verification
)

// ExitError carries the exit code a command should terminate with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error; ExitFailure when err
// is not an ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. In text mode data is printed with %v unless it is
// a textRenderer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textRenderer); ok {
		return r.renderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
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

// VerboseLog writes to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

type textRenderer interface {
	renderText(w io.Writer) error
}

// recordLine is the one-line text summary of a record.
func recordLine(r ir.ExperimentRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-24s  %-28s", r.ExperimentID, r.ActionID, r.Causality.Reason)
	if r.Causality.Attributed {
		b.WriteString("  attributed")
	} else {
		b.WriteString("  unattributed")
	}
	if r.Delta != nil {
		if msg, ok := r.Delta.Err(); ok {
			fmt.Fprintf(&b, "  delta error: %s", msg)
		} else if n, ok := r.Delta.PixelsChanged(); ok {
			total, _ := r.Delta.PixelsTotal()
			fmt.Fprintf(&b, "  %d/%d px", n, total)
		}
	}
	if r.RawError != nil {
		fmt.Fprintf(&b, "  action error: %s", *r.RawError)
	}
	return b.String()
}

// recordList renders records one per line in text mode and as an array
// in JSON mode.
type recordList []ir.ExperimentRecord

func (l recordList) renderText(w io.Writer) error {
	for _, r := range l {
		if _, err := fmt.Fprintln(w, recordLine(r)); err != nil {
			return err
		}
	}
	return nil
}

func (l recordList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]ir.ExperimentRecord(l))
}
