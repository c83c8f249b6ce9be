package common

import (
	ps "github.com/mitchellh/go-ps"
)

// ProcessRunning reports whether pid is present in the process table.
// Non-positive ids and lookup failures count as not running.
func ProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := ps.FindProcess(pid)

	return err == nil && proc != nil
}
