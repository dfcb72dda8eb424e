package cmd

import (
	"errors"
	"fmt"

	"github.com/a-lang/a/internal/types"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitRestartRequired means the new binary is staged and the swap
	// completes on the next run.
	ExitRestartRequired = 3
)

// ExitError carries a process exit code through cobra back to main.
type ExitError struct {
	Code int
	Err  error
	// Reported is set when Err was already written to the user.
	Reported bool
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if types.KindOf(err) == types.KindRestartRequired {
		return ExitRestartRequired
	}
	return ExitFailure
}
