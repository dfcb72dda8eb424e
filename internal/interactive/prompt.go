// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a confirmation is needed but stdin is not
// a terminal.
var ErrNotTerminal = errors.New("confirmation needs an interactive terminal")

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseNo  Response = iota // Skip the change (also the default)
	ResponseYes                 // Proceed with the change
)

// Prompter asks yes/no questions before a mutation.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner

	// assumeYes answers every prompt with yes, as --yes does.
	assumeYes bool
	// isTerminal reports whether in is interactive.
	isTerminal func() bool
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter(assumeYes bool) *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout).AssumeYes(assumeYes)
}

// NewPrompterWithIO creates a prompter with custom input/output. An *os.File
// input is interactive only if it is a terminal; any other reader is treated
// as interactive so tests can script answers.
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	isTerminal := func() bool { return true }
	if f, ok := in.(*os.File); ok {
		isTerminal = func() bool { return term.IsTerminal(int(f.Fd())) }
	}
	return &Prompter{
		in:         in,
		out:        out,
		scanner:    bufio.NewScanner(in),
		isTerminal: isTerminal,
	}
}

// AssumeYes makes every Confirm succeed without reading, as --yes does.
func (p *Prompter) AssumeYes(yes bool) *Prompter {
	p.assumeYes = yes
	return p
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...any) Response {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/N] ")

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return ResponseNo
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	default:
		return ResponseNo
	}
}

// Confirm asks the question and reports whether the user agreed. With
// assumeYes it returns true without reading. A non-interactive stdin yields
// ErrNotTerminal instead of guessing.
func (p *Prompter) Confirm(format string, args ...any) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	if p.isTerminal != nil && !p.isTerminal() {
		return false, ErrNotTerminal
	}
	return p.prompt(format, args...) == ResponseYes, nil
}
