package enums

import "fmt"

// JobStatus tracks an in-flight provider call from creation to a terminal state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPolling   JobStatus = "polling"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

var validJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusPolling,
	JobStatusSucceeded,
	JobStatusFailed,
}

// IsValid reports whether the value is a known JobStatus.
func (j JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (j JobStatus) Terminal() bool {
	return j == JobStatusSucceeded || j == JobStatusFailed
}

// ParseJobStatus converts the raw string to JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
