package enums

import "fmt"

// VoiceGender labels a voice entry for catalog filtering.
type VoiceGender string

const (
	VoiceGenderMale   VoiceGender = "male"
	VoiceGenderFemale VoiceGender = "female"
)

var validVoiceGenders = []VoiceGender{
	VoiceGenderMale,
	VoiceGenderFemale,
}

// IsValid reports whether the value is a known VoiceGender.
func (v VoiceGender) IsValid() bool {
	for _, candidate := range validVoiceGenders {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoiceGender converts the raw string to VoiceGender.
func ParseVoiceGender(value string) (VoiceGender, error) {
	for _, candidate := range validVoiceGenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voice gender %q", value)
}
