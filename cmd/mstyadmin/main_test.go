package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	runErr := &RunFailureError{Message: "calibration run failed"}

	assert.Equal(t, ExitRunFailed, exitCode(runErr))
	assert.Equal(t, ExitRunFailed, exitCode(fmt.Errorf("calibrate: %w", runErr)),
		"wrapped run failures keep their exit code")
	assert.Equal(t, ExitError, exitCode(errors.New("bad config")))
}
