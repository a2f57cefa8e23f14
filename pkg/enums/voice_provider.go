package enums

import "fmt"

// VoiceProvider identifies where a voice entry originates.
type VoiceProvider string

const (
	VoiceProviderOpenAI     VoiceProvider = "openai"
	VoiceProviderElevenLabs VoiceProvider = "elevenlabs"
	VoiceProviderCloned     VoiceProvider = "cloned"
)

var validVoiceProviders = []VoiceProvider{
	VoiceProviderOpenAI,
	VoiceProviderElevenLabs,
	VoiceProviderCloned,
}

// String implements fmt.Stringer.
func (v VoiceProvider) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoiceProvider.
func (v VoiceProvider) IsValid() bool {
	for _, candidate := range validVoiceProviders {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoiceProvider converts the raw string to VoiceProvider.
func ParseVoiceProvider(value string) (VoiceProvider, error) {
	for _, candidate := range validVoiceProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voice provider %q", value)
}
