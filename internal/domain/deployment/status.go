package deployment

import "strings"

// HealthStatus classifies the payload management endpoint answer.
type HealthStatus int

const (
	// HealthUnknown means the endpoint was unreachable or answered garbage.
	HealthUnknown HealthStatus = iota
	// HealthUp means the endpoint answered and reported UP.
	HealthUp
	// HealthDown means the endpoint answered and reported anything but UP.
	HealthDown
)

// ParseHealthStatus maps a reported status string; only "UP" is up.
func ParseHealthStatus(s string) HealthStatus {
	if strings.EqualFold(strings.TrimSpace(s), "UP") {
		return HealthUp
	}

	return HealthDown
}

func (s HealthStatus) String() string {
	switch s {
	case HealthUp:
		return "UP"
	case HealthDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// LaunchStatus is the terminal outcome of a launch attempt.
type LaunchStatus int

const (
	// LaunchFailed covers start errors, early exits and startup timeouts.
	LaunchFailed LaunchStatus = iota
	// LaunchSuccess means the payload reported UP within the budget.
	LaunchSuccess
)

func (s LaunchStatus) String() string {
	if s == LaunchSuccess {
		return "SUCCESS"
	}

	return "FAILED"
}

// LaunchResult is produced once per launch attempt.
type LaunchResult struct {
	// JarPath is the artifact that was launched.
	JarPath string
	// Status is the outcome.
	Status LaunchStatus
	// StartupLog is the captured child output, or the start error message.
	StartupLog string
	// ProcessID is the child pid, zero when the process never started.
	ProcessID int
}

// Succeeded reports whether the launch reached UP.
func (r LaunchResult) Succeeded() bool {
	return r.Status == LaunchSuccess
}
