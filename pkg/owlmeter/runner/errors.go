package runner

import (
	"errors"
	"fmt"
)

// ErrNoCommand is returned when Run is called without an executable
var ErrNoCommand = errors.New("no command given")

// SpawnError reports that the executable could not be started. No
// monitoring has happened when it is returned.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports a process that exited unsuccessfully. Metrics of such a
// run are discarded.
type ExitError struct {
	// Code is the exit status, or -1 if the process was terminated by a signal
	Code int

	// State is the process state description, e.g. "exit status 2" or "signal: killed"
	State string
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("process terminated abnormally: %s", e.State)
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}
