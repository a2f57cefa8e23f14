package enums

import "fmt"

// ProjectStatus tracks a project's lifecycle as pipeline stages complete.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusScripted  ProjectStatus = "scripted"
	ProjectStatusProducing ProjectStatus = "producing"
	ProjectStatusCompleted ProjectStatus = "completed"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusDraft,
	ProjectStatusScripted,
	ProjectStatusProducing,
	ProjectStatusCompleted,
}

// IsValid reports whether the value is a known ProjectStatus.
func (p ProjectStatus) IsValid() bool {
	for _, candidate := range validProjectStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProjectStatus converts the raw string to ProjectStatus.
func ParseProjectStatus(value string) (ProjectStatus, error) {
	for _, candidate := range validProjectStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", value)
}
