package enums

import "fmt"

// RunStatus is the overall outcome state of a production run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

var validRunStatuses = []RunStatus{
	RunStatusPending,
	RunStatusRunning,
	RunStatusCompleted,
	RunStatusFailed,
}

// IsValid reports whether the value is a known RunStatus.
func (r RunStatus) IsValid() bool {
	for _, candidate := range validRunStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// Terminal reports whether the run has finished, successfully or not.
func (r RunStatus) Terminal() bool {
	return r == RunStatusCompleted || r == RunStatusFailed
}

// ParseRunStatus converts the raw string to RunStatus.
func ParseRunStatus(value string) (RunStatus, error) {
	for _, candidate := range validRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid run status %q", value)
}
