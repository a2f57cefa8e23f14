package enums

import "fmt"

// AudioProvider selects the TTS engine used for dialogue synthesis.
type AudioProvider string

const (
	AudioProviderOpenAI     AudioProvider = "openai"
	AudioProviderElevenLabs AudioProvider = "elevenlabs"
)

var validAudioProviders = []AudioProvider{
	AudioProviderOpenAI,
	AudioProviderElevenLabs,
}

// String implements fmt.Stringer.
func (a AudioProvider) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AudioProvider.
func (a AudioProvider) IsValid() bool {
	for _, candidate := range validAudioProviders {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAudioProvider converts the raw string to AudioProvider.
func ParseAudioProvider(value string) (AudioProvider, error) {
	for _, candidate := range validAudioProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audio provider %q", value)
}
