package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrApplicationRequired is returned when Run is called without a state.
	ErrApplicationRequired = errors.New("application state is required")
	// ErrLaunchFailed is the cause of a launch stage failure.
	ErrLaunchFailed = errors.New("payload did not come up")
)

// Error is the single failure kind of a cycle.
type Error struct {
	// Stage names the stage that failed.
	Stage string
	// Err is the originating cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
