package enums

import "fmt"

// JobKind identifies which generation capability a provider job exercises.
type JobKind string

const (
	JobKindScript     JobKind = "script"
	JobKindImage      JobKind = "image"
	JobKindVideo      JobKind = "video"
	JobKindAudio      JobKind = "audio"
	JobKindVoiceClone JobKind = "voice_clone"
)

var validJobKinds = []JobKind{
	JobKindScript,
	JobKindImage,
	JobKindVideo,
	JobKindAudio,
	JobKindVoiceClone,
}

// String implements fmt.Stringer.
func (j JobKind) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JobKind.
func (j JobKind) IsValid() bool {
	for _, candidate := range validJobKinds {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJobKind converts the raw string to JobKind.
func ParseJobKind(value string) (JobKind, error) {
	for _, candidate := range validJobKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job kind %q", value)
}
