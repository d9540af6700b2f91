package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // lowering or execution failed
	ExitCommandError = 2 // bad flags, unreadable input, unwritable output
)

// ExitError carries the exit code a command failure maps to.
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

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure when it
// carries none.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// JSON reports whether results are written as JSON.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Success writes data. In text mode text is called to render it.
func (f *OutputFormatter) Success(data any, text func(w io.Writer) error) error {
	if f.JSON() {
		return f.encode(Response{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Failure reports err. In JSON mode the envelope is written to the output
// before err is returned, so the exit code is still set.
func (f *OutputFormatter) Failure(err error) error {
	if f.JSON() {
		if encErr := f.encode(Response{Status: "error", Error: err.Error()}); encErr != nil {
			return encErr
		}
	}
	return err
}

func (f *OutputFormatter) encode(r Response) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
