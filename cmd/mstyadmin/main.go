package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Command completed
	ExitRunFailed = 1 // A calibration or comparison run did not complete
	ExitError     = 2 // Configuration or runtime error
)

// RunFailureError indicates the command executed but the run it started
// ended in a failed state.
type RunFailureError struct {
	Message string
}

func (e *RunFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode classifies an execute error, unwrapping so a RunFailureError is
// recognized even when a subcommand wraps it with context.
func exitCode(err error) int {
	var runFailure *RunFailureError
	if errors.As(err, &runFailure) {
		return ExitRunFailed
	}
	return ExitError
}
