// Package output handles formatting output in different formats.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/a-lang/a/internal/types"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Writer handles output in the specified format.
type Writer struct {
	format Format
	w      io.Writer
	quiet  bool
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, w: w}
}

// SetQuiet suppresses step lines; results and errors are still written.
func (w *Writer) SetQuiet(quiet bool) {
	w.quiet = quiet
}

// Format returns the configured format.
func (w *Writer) Format() Format {
	return w.format
}

// IsText reports whether the writer renders human-readable text.
func (w *Writer) IsText() bool {
	return w.format == FormatText || w.format == ""
}

// Write outputs the given value in the configured format.
func (w *Writer) Write(v any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		// Text format - assume v implements fmt.Stringer or use default
		if s, ok := v.(fmt.Stringer); ok {
			_, err := fmt.Fprintln(w.w, s.String())
			return err
		}
		_, err := fmt.Fprintf(w.w, "%+v\n", v)
		return err
	}
}

// Success prints a completed step line in text mode.
func (w *Writer) Success(format string, args ...any) {
	w.line(SuccessStyle.Render(okSymbol), format, args...)
}

// Warn prints a non-fatal problem in text mode. Warnings are shown even in
// quiet mode.
func (w *Writer) Warn(format string, args ...any) {
	if !w.IsText() {
		return
	}
	_, _ = fmt.Fprintf(w.w, "%s %s\n", WarningStyle.Render(warnSymbol), fmt.Sprintf(format, args...))
}

// Hint prints an indented next step in text mode.
func (w *Writer) Hint(hint string) {
	if !w.IsText() || hint == "" {
		return
	}
	_, _ = fmt.Fprintf(w.w, "  %s %s\n", MutedStyle.Render("hint:"), HintStyle.Render(hint))
}

func (w *Writer) line(symbol, format string, args ...any) {
	if !w.IsText() || w.quiet {
		return
	}
	_, _ = fmt.Fprintf(w.w, "%s %s\n", symbol, fmt.Sprintf(format, args...))
}

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// ErrorReport is the structured form of a failed step.
type ErrorReport struct {
	Kind     string `json:"kind" yaml:"kind"`
	Step     string `json:"step,omitempty" yaml:"step,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Hint     string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// NewErrorReport flattens err. Errors that are not *types.Error report kind
// "Unknown" and their full message.
func NewErrorReport(err error) ErrorReport {
	var te *types.Error
	if !errors.As(err, &te) {
		return ErrorReport{Kind: types.KindUnknown.String(), Message: err.Error()}
	}
	msg := te.Message
	if msg == "" {
		msg = te.Kind.Sentinel().Error()
	}
	if te.Err != nil {
		msg += ": " + te.Err.Error()
	}
	return ErrorReport{
		Kind:     te.Kind.String(),
		Step:     te.Step,
		Message:  msg,
		Expected: te.Expected,
		Actual:   te.Actual,
		Hint:     te.Hint,
	}
}

// String renders the report as a failed step line followed by the
// expected/actual comparison and hint, one per line.
func (r ErrorReport) String() string {
	var sb strings.Builder
	head := r.Message
	if r.Step != "" {
		head = r.Step + ": " + r.Message
	}
	fmt.Fprintf(&sb, "%s %s", ErrorStyle.Render(failSymbol), head)
	if r.Expected != "" {
		fmt.Fprintf(&sb, "\n  %s %s", MutedStyle.Render("expected:"), r.Expected)
	}
	if r.Actual != "" {
		fmt.Fprintf(&sb, "\n  %s %s", MutedStyle.Render("actual:  "), r.Actual)
	}
	if r.Hint != "" {
		fmt.Fprintf(&sb, "\n  %s %s", MutedStyle.Render("hint:"), HintStyle.Render(r.Hint))
	}
	return sb.String()
}

// Error writes err in the configured format: a styled block in text mode,
// or an {"error": ...} document in json/yaml.
func (w *Writer) Error(err error) {
	if err == nil {
		return
	}
	report := NewErrorReport(err)
	if w.IsText() {
		_, _ = fmt.Fprintln(w.w, report.String())
		return
	}
	_ = w.Write(struct {
		Error ErrorReport `json:"error" yaml:"error"`
	}{report})
}
